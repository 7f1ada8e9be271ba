package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"

	"go.uber.org/zap"
)

var ErrPhaseSwitchInProgress = errors.New("phase switch already in progress")

type PhaseSwitchState int

const (
	PhaseSwitchIdle PhaseSwitchState = iota
	PhaseSwitchForcing
	PhaseSwitchRestoring
)

func (s PhaseSwitchState) String() string {
	switch s {
	case PhaseSwitchIdle:
		return "idle"
	case PhaseSwitchForcing:
		return "forcing"
	case PhaseSwitchRestoring:
		return "restoring"
	}
	return "invalid"
}

// PhaseSwitcher drives the force-single-phase flag of the wallbox.
//
// The wallbox ignores a direct request to clear the flag. Clearing goes through
// force_3, a pause, then back to auto: Idle -> Forcing -> Restoring -> Idle.
// Setting the flag is a single force_1 command.
type PhaseSwitcher struct {
	state  PhaseSwitchState
	delay  time.Duration
	clock  clock.Clock
	logger *zap.Logger
}

func NewPhaseSwitcher(delay time.Duration, clk clock.Clock, logger *zap.Logger) *PhaseSwitcher {
	return &PhaseSwitcher{
		delay:  delay,
		clock:  clk,
		logger: logger,
	}
}

func (p *PhaseSwitcher) State() PhaseSwitchState {
	return p.state
}

// ForceSinglePhase sets the flag. Returns the commands that were accepted.
func (p *PhaseSwitcher) ForceSinglePhase(act port.Actuator) ([]domain.PhaseSwitchMode, error) {
	if p.state != PhaseSwitchIdle {
		return nil, ErrPhaseSwitchInProgress
	}
	p.logger.Info("phase_switch: set ForceSinglePhase")
	if err := act.SetPhaseMode(domain.PhaseSwitchForce1); err != nil {
		return nil, fmt.Errorf("force single phase: %w", err)
	}
	return []domain.PhaseSwitchMode{domain.PhaseSwitchForce1}, nil
}

// ReleaseSinglePhase clears the flag. Returns the commands that were accepted.
func (p *PhaseSwitcher) ReleaseSinglePhase(act port.Actuator) ([]domain.PhaseSwitchMode, error) {
	if p.state != PhaseSwitchIdle {
		return nil, ErrPhaseSwitchInProgress
	}
	defer p.become(PhaseSwitchIdle)

	p.logger.Info("phase_switch: unset ForceSinglePhase")
	p.become(PhaseSwitchForcing)
	if err := act.SetPhaseMode(domain.PhaseSwitchForce3); err != nil {
		return nil, fmt.Errorf("force multi phase: %w", err)
	}
	sent := []domain.PhaseSwitchMode{domain.PhaseSwitchForce3}

	p.clock.Sleep(p.delay)

	p.become(PhaseSwitchRestoring)
	if err := act.SetPhaseMode(domain.PhaseSwitchAuto); err != nil {
		return sent, fmt.Errorf("restore automatic phase selection: %w", err)
	}
	return append(sent, domain.PhaseSwitchAuto), nil
}

func (p *PhaseSwitcher) become(state PhaseSwitchState) {
	p.logger.Debug("phase_switch: state", zap.Stringer("from", p.state), zap.Stringer("to", state))
	p.state = state
}
