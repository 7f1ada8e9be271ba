package events

import (
	"testing"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func TestBridgeDeviceIsStablePerBaseTopic(t *testing.T) {
	require := require.New(t)

	a := BridgeDevice("wattpilot2ess")
	b := BridgeDevice("wattpilot2ess")
	c := BridgeDevice("garage")

	require.Equal(a.Id, b.Id)
	require.NotEqual(a.Id, c.Id)
	require.Regexp("^wattpilot2ess_bridge_[0-9a-f]{8}$", a.Id)
}

func TestAllSensorsHaveUniqueIds(t *testing.T) {
	require := require.New(t)

	sensors := AllSensors("wattpilot2ess")
	seen := map[string]bool{}
	for _, s := range sensors {
		require.False(seen[s.Id], "duplicate sensor %s", s.Id)
		seen[s.Id] = true
		require.Contains(s.UniqueId, s.Device.Id)
		require.Contains([]string{SENSOR_TYPE_SENSOR, SENSOR_TYPE_BINARY}, s.SensorType)
	}
	for _, key := range domain.AllSettings {
		require.True(seen[SettingSensorId(key)], "missing sensor for %s", key)
	}
	require.True(seen[SENSOR_ID_BRIDGE_STATE])
	require.True(seen[SENSOR_ID_BATTERY_SOC])
}

func TestStorageSensorUnits(t *testing.T) {
	require := require.New(t)

	units := map[string]string{}
	for _, s := range StorageSensors(BridgeDevice("x")) {
		units[s.Id] = s.UnitOfMeasurement
	}
	require.Equal("A", units[SENSOR_ID_MAX_CHARGE_CURRENT])
	require.Equal("W", units[SENSOR_ID_MAX_DISCHARGE_POWER])
	require.Equal("W", units[SENSOR_ID_GRID_SETPOINT])
	require.Equal("%", units[SENSOR_ID_BATTERY_SOC])
}
