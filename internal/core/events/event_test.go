package events

import (
	"errors"
	"testing"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/events"

	"github.com/stretchr/testify/require"
)

func byId(evs []domain.SensorUpdateEvent) map[string]domain.SensorUpdateEvent {
	out := map[string]domain.SensorUpdateEvent{}
	for _, ev := range evs {
		out[ev.SensorId()] = ev
	}
	return out
}

func TestTickReportToUpdateEvents(t *testing.T) {
	require := require.New(t)

	soc := 42.5
	report := domain.TickReport{
		Snapshot: domain.ActuatorSnapshot{
			CarState:         domain.CarStateCharging,
			Mode:             domain.ChargeModeEco,
			AmpsPerPhase:     16,
			ForceSinglePhase: true,
			PowerKW:          3.6,
		},
		StateOfCharge: &soc,
		Settings: []domain.SettingOutcome{
			{Key: domain.GridSetPoint, Before: 200, Target: 0, Written: true},
			{Key: domain.ChargeCurrentLimit, Before: 18, Target: 18},
			{Key: domain.DischargePowerLimit, Err: errors.New("bus down")},
		},
		Errors: []error{errors.New("bus down")},
	}

	evs := byId(TickReportToUpdateEvents(report))

	require.Equal("charging", evs[events.SENSOR_ID_CAR_STATE].(domain.TextSensorUpdateEvent).Value)
	require.Equal("Eco", evs[events.SENSOR_ID_CHARGE_MODE].(domain.TextSensorUpdateEvent).Value)
	require.InDelta(3600, evs[events.SENSOR_ID_WALLBOX_POWER].(domain.FloatSensorUpdateEvent).Value, 0.001)
	require.Equal(16.0, evs[events.SENSOR_ID_WALLBOX_CURRENT].(domain.FloatSensorUpdateEvent).Value)
	require.True(evs[events.SENSOR_ID_FORCE_SINGLE_PHASE].(domain.BinarySensorUpdateEvent).Value)
	require.Equal(42.5, evs[events.SENSOR_ID_BATTERY_SOC].(domain.FloatSensorUpdateEvent).Value)
	require.Equal(0.0, evs[events.SENSOR_ID_GRID_SETPOINT].(domain.FloatSensorUpdateEvent).Value)
	require.Equal(18.0, evs[events.SENSOR_ID_MAX_CHARGE_CURRENT].(domain.FloatSensorUpdateEvent).Value)
	require.NotContains(evs, events.SENSOR_ID_MAX_DISCHARGE_POWER)
	require.Equal(1.0, evs[events.SENSOR_ID_TICK_ERRORS].(domain.FloatSensorUpdateEvent).Value)
}

func TestTickReportWithoutStateOfCharge(t *testing.T) {
	evs := byId(TickReportToUpdateEvents(domain.TickReport{}))
	require.NotContains(t, evs, events.SENSOR_ID_BATTERY_SOC)
	require.Equal(t, "unknown", evs[events.SENSOR_ID_CAR_STATE].(domain.TextSensorUpdateEvent).Value)
}

func TestConnectionStateToUpdateEvents(t *testing.T) {
	evs := ConnectionStateToUpdateEvents(domain.Connecting)
	require.Len(t, evs, 1)
	require.Equal(t, events.SENSOR_ID_WALLBOX_CONNECTION, evs[0].SensorId())
	require.Equal(t, "connecting", evs[0].(domain.TextSensorUpdateEvent).Value)
}
