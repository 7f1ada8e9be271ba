package events

import (
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/events"
)

func BridgeStateUpdateEvent(online bool) domain.SensorUpdateEvent {
	return domain.BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}

func ConnectionStateToUpdateEvents(state domain.ConnectionState) []domain.SensorUpdateEvent {
	return []domain.SensorUpdateEvent{
		domain.TextSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: events.SENSOR_ID_WALLBOX_CONNECTION,
			},
			Value: state.String(),
		},
	}
}

func TickReportToUpdateEvents(report domain.TickReport) []domain.SensorUpdateEvent {
	var evs []domain.SensorUpdateEvent
	snap := report.Snapshot

	// Car state
	evs = append(evs, domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_CAR_STATE,
		},
		Value: snap.CarState.String(),
	})
	// Charge mode
	evs = append(evs, domain.TextSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_CHARGE_MODE,
		},
		Value: snap.Mode.String(),
	})
	// Wallbox power
	evs = append(evs, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_WALLBOX_POWER,
		},
		Value:    snap.PowerWatt(),
		Decimals: 0,
	})
	// Wallbox current
	evs = append(evs, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_WALLBOX_CURRENT,
		},
		Value:    float64(snap.AmpsPerPhase),
		Decimals: 0,
	})
	// Force single phase
	evs = append(evs, domain.BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_FORCE_SINGLE_PHASE,
		},
		Value: snap.ForceSinglePhase,
	})
	// Battery SoC, only when the tick needed it
	if report.StateOfCharge != nil {
		evs = append(evs, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: events.SENSOR_ID_BATTERY_SOC,
			},
			Value:    *report.StateOfCharge,
			Decimals: 1,
		})
	}
	// Storage settings that could be read or written
	for _, outcome := range report.Settings {
		if outcome.Err != nil {
			continue
		}
		evs = append(evs, domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: events.SettingSensorId(outcome.Key),
			},
			Value:    outcome.Effective(),
			Decimals: 0,
		})
	}
	// Errors
	evs = append(evs, domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: events.SENSOR_ID_TICK_ERRORS,
		},
		Value: float64(len(report.Errors)),
	})

	return evs
}
