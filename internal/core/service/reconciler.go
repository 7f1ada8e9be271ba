package service

import (
	"fmt"

	"github.com/berfenger/wattpilot2ess/internal/clock"
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"

	"go.uber.org/zap"
)

// ModeReconciler decides, for one wallbox snapshot, which storage settings and wallbox
// commands are needed and applies only the ones that differ from the live values.
type ModeReconciler struct {
	params   domain.ControlParams
	writer   settingWriter
	resetter *DefaultsResetter
	soc      port.SoCReader
	phase    *PhaseSwitcher
	clock    clock.Clock
	logger   *zap.Logger
}

func NewModeReconciler(settings port.SettingsClient, soc port.SoCReader, resetter *DefaultsResetter,
	clk clock.Clock, params domain.ControlParams, logger *zap.Logger) *ModeReconciler {
	logger = logger.With(zap.String("component", "reconciler"))
	return &ModeReconciler{
		params: params,
		writer: settingWriter{
			settings:        settings,
			logReturnValues: params.LogReturnValues,
			logger:          logger,
		},
		resetter: resetter,
		soc:      soc,
		phase:    NewPhaseSwitcher(params.PhaseSwitchDelay, clk, logger),
		clock:    clk,
		logger:   logger,
	}
}

// Plan computes the target state for a snapshot. soc is only used while charging in Eco mode;
// when it is nil the charge-current limit is left untouched.
func (r *ModeReconciler) Plan(snap domain.ActuatorSnapshot, soc *float64) domain.TargetState {
	switch snap.CarState {
	case domain.CarStateNoCar:
		target := defaultsOnly()
		if wb, ok := r.wallboxTarget(snap.Mode); ok {
			target.Wallbox = &wb
		}
		return target
	case domain.CarStateCharging:
		return r.chargingTarget(snap, soc)
	default:
		return defaultsOnly()
	}
}

func (r *ModeReconciler) chargingTarget(snap domain.ActuatorSnapshot, soc *float64) domain.TargetState {
	switch snap.Mode {
	case domain.ChargeModeEco:
		settings := []domain.SettingTarget{unconstrained(domain.GridSetPoint)}
		if soc != nil {
			settings = append(settings, domain.SettingTarget{
				Key:   domain.ChargeCurrentLimit,
				Value: DynamicChargeCurrent(*soc, r.params.MaxChargeCurrent),
			})
		}
		settings = append(settings, domain.SettingTarget{
			Key:   domain.DischargePowerLimit,
			Value: r.params.EcoMaxDischargePowerWatt,
		})
		return domain.TargetState{Settings: settings}
	case domain.ChargeModeNextTrip:
		return domain.TargetState{Settings: []domain.SettingTarget{
			unconstrained(domain.GridSetPoint),
			{Key: domain.DischargePowerLimit, Value: r.params.NextTripMaxDischargePowerWatt},
		}}
	case domain.ChargeModeDefault:
		// pin the grid set-point to the car load so the battery neither feeds nor absorbs it
		return domain.TargetState{Settings: []domain.SettingTarget{
			unconstrained(domain.DischargePowerLimit),
			{Key: domain.GridSetPoint, Value: snap.PowerWatt()},
		}}
	}
	return defaultsOnly()
}

func (r *ModeReconciler) wallboxTarget(mode domain.ChargeMode) (domain.WallboxTarget, bool) {
	switch mode {
	case domain.ChargeModeEco:
		return domain.WallboxTarget{SinglePhase: false, Amps: r.params.EcoChargeAmps}, true
	case domain.ChargeModeNextTrip:
		return domain.WallboxTarget{SinglePhase: true, Amps: r.params.NextTripChargeAmps}, true
	case domain.ChargeModeDefault:
		return domain.WallboxTarget{SinglePhase: false, Amps: r.params.DefaultChargeAmps}, true
	}
	return domain.WallboxTarget{}, false
}

// Reconcile runs one tick against the given snapshot. Failures are logged and reported,
// never retried: the next tick reads the live values again.
func (r *ModeReconciler) Reconcile(act port.Actuator, snap domain.ActuatorSnapshot) domain.TickReport {
	report := domain.TickReport{
		Time:     r.clock.Now(),
		Snapshot: snap,
	}
	r.logger.Sugar().Debugf("reconciler@%s: mode is %s", snap.CarState, snap.Mode)

	var soc *float64
	if needsStateOfCharge(snap) {
		value, err := r.soc.StateOfCharge()
		if err != nil {
			r.logger.Warn("reconciler: could not read state of charge", zap.Error(err))
			report.Errors = append(report.Errors, fmt.Errorf("read state of charge: %w", err))
		} else {
			r.logger.Debug("reconciler: state of charge", zap.Float64("soc", value))
			soc = &value
		}
	}

	report.StateOfCharge = soc
	report.Target = r.Plan(snap, soc)

	for _, st := range report.Target.Settings {
		var outcome domain.SettingOutcome
		if st.IsUnconstrained() {
			outcome = r.resetter.Reset(st.Key)
		} else {
			outcome = r.writer.ensure(st.Key, st.Value)
		}
		report.Settings = append(report.Settings, outcome)
		if outcome.Err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", st.Key, outcome.Err))
		}
	}

	if report.Target.Wallbox != nil {
		r.applyWallbox(act, snap, *report.Target.Wallbox, &report)
	}
	return report
}

func (r *ModeReconciler) applyWallbox(act port.Actuator, snap domain.ActuatorSnapshot, want domain.WallboxTarget, report *domain.TickReport) {
	if snap.ForceSinglePhase != want.SinglePhase {
		var sent []domain.PhaseSwitchMode
		var err error
		if want.SinglePhase {
			sent, err = r.phase.ForceSinglePhase(act)
		} else {
			sent, err = r.phase.ReleaseSinglePhase(act)
		}
		for _, mode := range sent {
			report.Commands = append(report.Commands, fmt.Sprintf("psm=%d", mode))
		}
		if err != nil {
			r.logger.Warn("reconciler: phase switch failed", zap.Error(err))
			report.Errors = append(report.Errors, err)
		}
	}

	if snap.AmpsPerPhase != want.Amps {
		r.logger.Sugar().Infof("reconciler@%s: set power to %d A", snap.CarState, want.Amps)
		err := act.SetCurrentLimit(want.Amps)
		if r.params.LogReturnValues {
			r.logger.Debug("reconciler: set power returned", zap.NamedError("result", err))
		}
		if err != nil {
			r.logger.Warn("reconciler: set power failed", zap.Error(err))
			report.Errors = append(report.Errors, fmt.Errorf("set power: %w", err))
			return
		}
		report.Commands = append(report.Commands, fmt.Sprintf("amp=%d", want.Amps))
	}
}

func defaultsOnly() domain.TargetState {
	settings := make([]domain.SettingTarget, 0, len(domain.AllSettings))
	for _, key := range domain.AllSettings {
		settings = append(settings, unconstrained(key))
	}
	return domain.TargetState{Settings: settings}
}

func unconstrained(key domain.SettingKey) domain.SettingTarget {
	return domain.SettingTarget{Key: key, Value: key.Unconstrained()}
}
