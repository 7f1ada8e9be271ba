package port

import (
	"context"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"
)

// Actuator is the wallbox link.
type Actuator interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Snapshot() (domain.ActuatorSnapshot, error)
	SendRawCommand(key string, value any) error
	SetPhaseMode(mode domain.PhaseSwitchMode) error
	SetCurrentLimit(amps uint) error
}

// ActuatorFactory builds a fresh, not yet connected, Actuator.
type ActuatorFactory func() (Actuator, error)
