package service

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReleaseSinglePhaseSequence(t *testing.T) {
	require := require.New(t)

	rec := &recorder{}
	act := &fakeActuator{rec: rec}
	ps := NewPhaseSwitcher(time.Second, newRecordingClock(rec), zap.NewNop())

	sent, err := ps.ReleaseSinglePhase(act)
	require.NoError(err)
	require.Equal([]domain.PhaseSwitchMode{domain.PhaseSwitchForce3, domain.PhaseSwitchAuto}, sent)
	require.Equal([]string{"psm=2", "wait:1s", "psm=0"}, rec.all())
	require.Equal(PhaseSwitchIdle, ps.State())
}

func TestForceSinglePhaseIsOneCommand(t *testing.T) {
	require := require.New(t)

	rec := &recorder{}
	act := &fakeActuator{rec: rec}
	ps := NewPhaseSwitcher(time.Second, newRecordingClock(rec), zap.NewNop())

	sent, err := ps.ForceSinglePhase(act)
	require.NoError(err)
	require.Equal([]domain.PhaseSwitchMode{domain.PhaseSwitchForce1}, sent)
	require.Equal([]string{"psm=1"}, rec.all())
}

func TestReleaseSinglePhaseFailureReturnsToIdle(t *testing.T) {
	require := require.New(t)

	rec := &recorder{}
	act := &fakeActuator{rec: rec, phaseErr: errors.New("not connected")}
	ps := NewPhaseSwitcher(time.Second, newRecordingClock(rec), zap.NewNop())

	sent, err := ps.ReleaseSinglePhase(act)
	require.Error(err)
	require.Empty(sent)
	require.Equal([]string{"psm=2"}, rec.all(), "no pause nor restore after a failed force_3")
	require.Equal(PhaseSwitchIdle, ps.State())
}

func TestPhaseSwitchRejectsReentry(t *testing.T) {
	require := require.New(t)

	rec := &recorder{}
	act := &fakeActuator{rec: rec}
	clk := newRecordingClock(rec)
	ps := NewPhaseSwitcher(time.Second, clk, zap.NewNop())

	var nestedErr error
	clk.OnWait(func(time.Duration) {
		require.Equal(PhaseSwitchForcing, ps.State())
		_, nestedErr = ps.ForceSinglePhase(act)
	})

	_, err := ps.ReleaseSinglePhase(act)
	require.NoError(err)
	require.ErrorIs(nestedErr, ErrPhaseSwitchInProgress)
	require.Equal([]domain.PhaseSwitchMode{domain.PhaseSwitchForce3, domain.PhaseSwitchAuto}, act.phases)
}
