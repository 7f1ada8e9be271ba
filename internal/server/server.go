package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/adapter/status"
	"github.com/berfenger/wattpilot2ess/internal/config"

	_ "github.com/joho/godotenv/autoload"
)

// StatusProvider is what the HTTP surface reads the control loop state from.
type StatusProvider interface {
	Healthy() bool
	Status() status.BoardStatus
}

type Server struct {
	port    uint
	httpLog bool
	status  StatusProvider
}

func NewServer(cfg config.Config, provider StatusProvider) *http.Server {
	NewServer := &Server{
		port:    cfg.Port,
		httpLog: cfg.HttpLog,
		status:  provider,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
