package service

import (
	"math"
	"testing"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func TestDynamicChargeCurrent(t *testing.T) {
	require := require.New(t)

	const max = 35
	tests := []struct {
		soc  float64
		want float64
	}{
		{soc: 0, want: 35},
		{soc: 4, want: 35},
		{soc: 5, want: 35},
		{soc: 12, want: math.Round(91 * max / 100.0)},
		{soc: 25, want: 28},
		{soc: 45, want: 21},
		{soc: 50, want: 18},
		{soc: 55, want: math.Round(41 * max / 100.0)},
		{soc: 85, want: math.Round(21 * max / 100.0)},
		{soc: 94, want: math.Round(11 * max / 100.0)},
		{soc: 95, want: math.Round(max / 100.0)},
		{soc: 100, want: 0},
	}
	for _, tt := range tests {
		require.Equal(tt.want, DynamicChargeCurrent(tt.soc, max), "soc %v", tt.soc)
	}
}

func TestDynamicChargeCurrentOutOfRange(t *testing.T) {
	require := require.New(t)

	require.Equal(DynamicChargeCurrent(0, 35), DynamicChargeCurrent(-12, 35))
	require.Equal(DynamicChargeCurrent(100, 35), DynamicChargeCurrent(130, 35))
}

func TestDynamicChargeCurrentIsMonotonic(t *testing.T) {
	require := require.New(t)

	for _, max := range []uint32{16, 35, 50} {
		last := DynamicChargeCurrent(0, max)
		require.LessOrEqual(last, float64(max))
		for soc := 1.0; soc <= 100; soc++ {
			current := DynamicChargeCurrent(soc, max)
			require.LessOrEqual(current, last, "soc %v max %d", soc, max)
			require.GreaterOrEqual(current, 0.0)
			last = current
		}
	}
}

func TestNeedsStateOfCharge(t *testing.T) {
	require := require.New(t)

	require.True(needsStateOfCharge(domain.ActuatorSnapshot{CarState: domain.CarStateCharging, Mode: domain.ChargeModeEco}))
	require.False(needsStateOfCharge(domain.ActuatorSnapshot{CarState: domain.CarStateCharging, Mode: domain.ChargeModeNextTrip}))
	require.False(needsStateOfCharge(domain.ActuatorSnapshot{CarState: domain.CarStateNoCar, Mode: domain.ChargeModeEco}))
}
