package service

import (
	"context"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"

	"go.uber.org/zap"
)

// ConnectionSupervisor is the outer loop of the process. It keeps the wallbox link up and
// runs the reconciler on a fixed interval while connected. Nothing it meets is fatal.
type ConnectionSupervisor struct {
	params     domain.ControlParams
	factory    port.ActuatorFactory
	resetter   *DefaultsResetter
	reconciler *ModeReconciler
	sink       port.StatusSink
	clock      clock.Clock
	logger     *zap.Logger
	state      domain.ConnectionState
}

func NewConnectionSupervisor(factory port.ActuatorFactory, resetter *DefaultsResetter, reconciler *ModeReconciler,
	sink port.StatusSink, clk clock.Clock, params domain.ControlParams, logger *zap.Logger) *ConnectionSupervisor {
	if sink == nil {
		sink = noopSink{}
	}
	return &ConnectionSupervisor{
		params:     params,
		factory:    factory,
		resetter:   resetter,
		reconciler: reconciler,
		sink:       sink,
		clock:      clk,
		logger:     logger.With(zap.String("component", "supervisor")),
		state:      domain.Disconnected,
	}
}

func (s *ConnectionSupervisor) State() domain.ConnectionState {
	return s.state
}

// Run only returns when ctx is cancelled. Before returning it drops the link and
// restores the storage defaults.
func (s *ConnectionSupervisor) Run(ctx context.Context) error {
	for {
		act := s.runCycle(ctx)
		if ctx.Err() != nil {
			s.logger.Info("supervisor: stopping")
			if act != nil {
				s.disconnect(act)
			}
			s.setState(domain.Disconnected)
			s.resetter.ResetAll()
			return ctx.Err()
		}
	}
}

// runCycle goes once through disconnected -> connecting -> connected. It returns the
// actuator still to be released when ctx was cancelled mid-cycle.
func (s *ConnectionSupervisor) runCycle(ctx context.Context) port.Actuator {
	s.setState(domain.Disconnected)
	s.resetter.ResetAll()

	s.setState(domain.Connecting)
	act, ok := s.connect(ctx)
	if !ok {
		return act
	}

	s.setState(domain.Connected)
	if !s.wait(ctx, s.params.SettleDelay) {
		return act
	}

	if !s.poll(ctx, act) {
		return act
	}

	s.setState(domain.Disconnected)
	s.logger.Sugar().Infof("supervisor: wallbox link lost, trying to reconnect in %s", s.params.ReconnectCooldown)
	s.disconnect(act)
	s.wait(ctx, s.params.ReconnectCooldown)
	return nil
}

// connect retries every WaitInterval until the link is up. The client is built lazily, so a
// construction failure is retried like a failed connect.
func (s *ConnectionSupervisor) connect(ctx context.Context) (port.Actuator, bool) {
	var act port.Actuator
	start := s.clock.Now()
	attempts := 0
	for {
		if ctx.Err() != nil {
			return act, false
		}
		if act == nil {
			var err error
			if act, err = s.factory(); err != nil {
				s.logger.Error("supervisor: could not create wallbox client", zap.Error(err))
			}
		}
		if act != nil {
			attempts++
			err := act.Connect(ctx)
			if err == nil && act.Connected() {
				s.logger.Sugar().Infof("supervisor: wallbox connected after %s (%d attempts)",
					s.clock.Now().Sub(start).Round(time.Second), attempts)
				return act, true
			}
			s.logger.Debug("supervisor@connecting: wallbox not yet connected", zap.Int("attempt", attempts), zap.Error(err))
		}
		if !s.wait(ctx, s.params.WaitInterval) {
			return act, false
		}
	}
}

// poll returns false when ctx was cancelled, true when the link dropped.
func (s *ConnectionSupervisor) poll(ctx context.Context, act port.Actuator) bool {
	for act.Connected() {
		if ctx.Err() != nil {
			return false
		}
		s.tick(act)
		if !s.wait(ctx, s.params.WaitInterval) {
			return false
		}
	}
	return true
}

func (s *ConnectionSupervisor) tick(act port.Actuator) {
	snap, err := act.Snapshot()
	if err != nil {
		s.logger.Warn("supervisor@connected: could not read wallbox state, restoring defaults", zap.Error(err))
		s.resetter.ResetAll()
		return
	}
	s.logger.Debug("supervisor@connected: wallbox state",
		zap.Stringer("car", snap.CarState),
		zap.Stringer("mode", snap.Mode),
		zap.Uint("amp", snap.AmpsPerPhase),
		zap.Bool("fsp", snap.ForceSinglePhase),
		zap.Float64("power_kw", snap.PowerKW))

	report := s.reconciler.Reconcile(act, snap)
	s.sink.TickCompleted(report)
}

func (s *ConnectionSupervisor) disconnect(act port.Actuator) {
	if err := act.Disconnect(); err != nil {
		s.logger.Warn("supervisor: disconnect failed", zap.Error(err))
	}
}

func (s *ConnectionSupervisor) setState(state domain.ConnectionState) {
	if s.state != state {
		s.logger.Info("supervisor: state change", zap.Stringer("from", s.state), zap.Stringer("to", state))
	}
	s.state = state
	s.sink.ConnectionChanged(state)
}

func (s *ConnectionSupervisor) wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	c, stop := s.clock.NewTimer(d)
	defer stop()
	select {
	case <-ctx.Done():
		return false
	case <-c:
		return ctx.Err() == nil
	}
}

type noopSink struct{}

func (noopSink) ConnectionChanged(domain.ConnectionState) {}
func (noopSink) TickCompleted(domain.TickReport)          {}

// ensure interface compliance
var _ port.StatusSink = noopSink{}
