package wallbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"
	"github.com/berfenger/wattpilot2ess/pkg/wattpilot"

	"go.uber.org/zap"
)

var ErrNoStatus = errors.New("wallbox: no status received yet")

// WattpilotActuator exposes a wattpilot.Client as the actuator of the control loop.
type WattpilotActuator struct {
	client *wattpilot.Client
	logger *zap.Logger
}

func NewWattpilotActuator(client *wattpilot.Client, logger *zap.Logger) *WattpilotActuator {
	return &WattpilotActuator{
		client: client,
		logger: logger,
	}
}

// NewFactory returns a factory building one fresh client per connection attempt.
func NewFactory(host, password string, logger *zap.Logger, opts ...wattpilot.Option) port.ActuatorFactory {
	return func() (port.Actuator, error) {
		client, err := wattpilot.NewClient(host, password, logger, opts...)
		if err != nil {
			return nil, err
		}
		return NewWattpilotActuator(client, logger), nil
	}
}

func (a *WattpilotActuator) Connect(ctx context.Context) error {
	return a.client.Connect(ctx)
}

func (a *WattpilotActuator) Disconnect() error {
	return a.client.Disconnect()
}

func (a *WattpilotActuator) Connected() bool {
	return a.client.Connected()
}

func (a *WattpilotActuator) Snapshot() (domain.ActuatorSnapshot, error) {
	if !a.client.Ready() {
		return domain.ActuatorSnapshot{}, ErrNoStatus
	}
	return SnapshotFromStatus(a.client.Status())
}

func (a *WattpilotActuator) SendRawCommand(key string, value any) error {
	return a.client.SendUpdate(key, value)
}

func (a *WattpilotActuator) SetPhaseMode(mode domain.PhaseSwitchMode) error {
	return a.client.SendUpdate(wattpilot.KeyPhaseSwitchMode, int(mode))
}

func (a *WattpilotActuator) SetCurrentLimit(amps uint) error {
	return a.client.SetPower(amps)
}

// SnapshotFromStatus maps raw wallbox status values to a snapshot. Unknown car states
// and modes map to their Unknown value. Missing or malformed fields are an error.
func SnapshotFromStatus(status map[string]any) (domain.ActuatorSnapshot, error) {
	var snap domain.ActuatorSnapshot

	snap.CarState = domain.CarStateUnknown
	if car, err := number(status, wattpilot.KeyCarState); err == nil {
		snap.CarState = carState(int(car))
	}
	snap.Mode = domain.ChargeModeUnknown
	if mode, err := number(status, wattpilot.KeyChargeMode); err == nil {
		snap.Mode = chargeMode(int(mode))
	}

	amp, err := number(status, wattpilot.KeyAmpere)
	if err != nil {
		return snap, err
	}
	if amp < 0 {
		return snap, fmt.Errorf("wallbox: negative %s %v", wattpilot.KeyAmpere, amp)
	}
	snap.AmpsPerPhase = uint(amp)

	fsp, ok := status[wattpilot.KeyForceSinglePhase].(bool)
	if !ok {
		return snap, fmt.Errorf("wallbox: missing or invalid %s", wattpilot.KeyForceSinglePhase)
	}
	snap.ForceSinglePhase = fsp

	nrg, ok := status[wattpilot.KeyEnergy].([]any)
	if !ok || len(nrg) <= energyTotalPowerIndex {
		return snap, fmt.Errorf("wallbox: missing or invalid %s", wattpilot.KeyEnergy)
	}
	power, ok := nrg[energyTotalPowerIndex].(float64)
	if !ok {
		return snap, fmt.Errorf("wallbox: invalid total power in %s", wattpilot.KeyEnergy)
	}
	snap.PowerKW = power / 1000
	return snap, nil
}

// total power, in W
const energyTotalPowerIndex = 11

func number(status map[string]any, key string) (float64, error) {
	v, ok := status[key]
	if !ok {
		return 0, fmt.Errorf("wallbox: missing %s", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("wallbox: invalid %s %v", key, v)
	}
	return f, nil
}

func carState(v int) domain.CarState {
	switch v {
	case 1:
		return domain.CarStateNoCar
	case 2:
		return domain.CarStateCharging
	case 3:
		return domain.CarStateReady
	case 4:
		return domain.CarStateComplete
	}
	return domain.CarStateUnknown
}

func chargeMode(v int) domain.ChargeMode {
	switch v {
	case 3:
		return domain.ChargeModeDefault
	case 4:
		return domain.ChargeModeEco
	case 5:
		return domain.ChargeModeNextTrip
	}
	return domain.ChargeModeUnknown
}

// ensure interface compliance
var _ port.Actuator = (*WattpilotActuator)(nil)
