package domain

import "time"

// ControlParams is the immutable tuning of the reconciliation loop.
type ControlParams struct {
	WaitInterval      time.Duration
	SettleDelay       time.Duration
	PhaseSwitchDelay  time.Duration
	ReconnectCooldown time.Duration

	MaxChargeCurrent uint32

	EcoMaxDischargePowerWatt      float64
	NextTripMaxDischargePowerWatt float64

	EcoChargeAmps      uint
	NextTripChargeAmps uint
	DefaultChargeAmps  uint

	LogReturnValues bool
}

func DefaultControlParams() ControlParams {
	return ControlParams{
		WaitInterval:                  3 * time.Second,
		SettleDelay:                   1 * time.Second,
		PhaseSwitchDelay:              1 * time.Second,
		ReconnectCooldown:             60 * time.Second,
		MaxChargeCurrent:              35,
		EcoMaxDischargePowerWatt:      1380,
		NextTripMaxDischargePowerWatt: 2180,
		EcoChargeAmps:                 16,
		NextTripChargeAmps:            8,
		DefaultChargeAmps:             16,
	}
}

// SettingTarget is a value the reconciler wants a storage setting to have.
type SettingTarget struct {
	Key   SettingKey
	Value float64
}

func (t SettingTarget) IsUnconstrained() bool {
	return SettingEquals(t.Value, t.Key.Unconstrained())
}

// WallboxTarget is the phase mode and per-phase current the wallbox should have while no car is plugged.
type WallboxTarget struct {
	SinglePhase bool
	Amps        uint
}

// TargetState is what one tick wants to reach. Settings are applied in order.
type TargetState struct {
	Settings []SettingTarget
	Wallbox  *WallboxTarget
}

func (t TargetState) Setting(key SettingKey) (SettingTarget, bool) {
	for _, s := range t.Settings {
		if s.Key == key {
			return s, true
		}
	}
	return SettingTarget{}, false
}

// SettingOutcome records what happened to one setting during a tick.
type SettingOutcome struct {
	Key     SettingKey
	Before  float64
	Target  float64
	Written bool
	Err     error
}

// Effective is the best known value of the setting after the tick.
func (o SettingOutcome) Effective() float64 {
	if o.Written {
		return o.Target
	}
	return o.Before
}

// TickReport summarises one reconciliation tick.
type TickReport struct {
	Time     time.Time
	Snapshot ActuatorSnapshot
	Target   TargetState
	Settings []SettingOutcome
	Commands []string
	Errors   []error

	// StateOfCharge is set when the tick read the battery.
	StateOfCharge *float64
}
