package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RegisterRoutes builds the echo router serving the health and status endpoints.
func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)

	return e
}

// HealthCheckHandler answers 503 once the control loop has stopped reporting.
func (s *Server) HealthCheckHandler(c echo.Context) error {
	code, body := http.StatusOK, "health_check: OK"
	if !s.status.Healthy() {
		code, body = http.StatusServiceUnavailable, "health_check: FAIL"
	}
	return c.String(code, body)
}

// StatusHandler serves the connection state and the last tick as JSON.
// Add ?pretty to indent the output.
func (s *Server) StatusHandler(c echo.Context) error {
	if _, pretty := c.QueryParams()["pretty"]; pretty {
		return c.JSONPretty(http.StatusOK, s.status.Status(), "  ")
	}
	return c.JSON(http.StatusOK, s.status.Status())
}
