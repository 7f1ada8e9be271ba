package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/adapter/status"
	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/util"

	"github.com/stretchr/testify/require"
)

func newTestHandler(board *status.Board) http.Handler {
	return NewServer(util.LoadTestConfig(), board).Handler
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	require := require.New(t)

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	board := status.NewBoard(clk, time.Minute)
	handler := newTestHandler(board)

	rec := get(handler, "/healthcheck")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("health_check: OK", rec.Body.String())

	clk.Sleep(2 * time.Minute)
	rec = get(handler, "/healthcheck")
	require.Equal(http.StatusServiceUnavailable, rec.Code)
	require.Equal("health_check: FAIL", rec.Body.String())
}

func TestStatus(t *testing.T) {
	require := require.New(t)

	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	board := status.NewBoard(clk, time.Minute)
	board.ConnectionChanged(domain.Connected)
	board.TickCompleted(domain.TickReport{
		Time:     clk.Now(),
		Snapshot: domain.ActuatorSnapshot{CarState: domain.CarStateCharging, Mode: domain.ChargeModeDefault, PowerKW: 7.5},
		Settings: []domain.SettingOutcome{{Key: domain.GridSetPoint, Before: 0, Target: 7500, Written: true}},
	})

	rec := get(newTestHandler(board), "/status")
	require.Equal(http.StatusOK, rec.Code)

	var body status.BoardStatus
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal("connected", body.Connection)
	require.True(body.Healthy)
	require.NotNil(body.LastTick)
	require.Equal("charging", body.LastTick.CarState)
	require.Equal(7500.0, body.LastTick.PowerWatt)
	require.Equal(7500.0, body.LastTick.Settings["grid_setpoint"])
}

func TestUnknownRoute(t *testing.T) {
	board := status.NewBoard(clock.NewRealClock(), time.Minute)
	rec := get(newTestHandler(board), "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusPretty(t *testing.T) {
	require := require.New(t)

	board := status.NewBoard(clock.NewRealClock(), time.Minute)
	board.ConnectionChanged(domain.Connecting)

	rec := get(newTestHandler(board), "/status?pretty")
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "\n  \"")

	var body status.BoardStatus
	require.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal("connecting", body.Connection)
	require.Nil(body.LastTick)
}
