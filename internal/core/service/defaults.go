package service

import (
	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"

	"go.uber.org/zap"
)

type settingWriter struct {
	settings        port.SettingsClient
	logReturnValues bool
	logger          *zap.Logger
}

// ensure reads the setting and writes target only if the current value differs.
func (w settingWriter) ensure(key domain.SettingKey, target float64) domain.SettingOutcome {
	outcome := domain.SettingOutcome{Key: key, Target: target}

	current, err := w.settings.Get(key)
	if err != nil {
		w.logger.Warn("settings: read failed", zap.Stringer("setting", key), zap.Error(err))
		outcome.Err = err
		return outcome
	}
	outcome.Before = current
	w.logger.Debug("settings: current value", zap.Stringer("setting", key), zap.Float64("value", current))

	if domain.SettingEquals(current, target) {
		w.logger.Debug("settings: nothing to do", zap.Stringer("setting", key), zap.Float64("value", current))
		return outcome
	}

	w.logger.Sugar().Infof("settings: set %s from %g to %g %s", key, current, target, key.Unit())
	err = w.settings.Set(key, target)
	if w.logReturnValues {
		w.logger.Debug("settings: write returned", zap.Stringer("setting", key), zap.NamedError("result", err))
	}
	if err != nil {
		w.logger.Warn("settings: write failed", zap.Stringer("setting", key), zap.Error(err))
		outcome.Err = err
		return outcome
	}
	outcome.Written = true
	return outcome
}

// DefaultsResetter puts the storage settings back to their unconstrained values.
// Every reset reads first and writes only when needed, so calling it repeatedly is cheap.
type DefaultsResetter struct {
	writer settingWriter
}

func NewDefaultsResetter(settings port.SettingsClient, params domain.ControlParams, logger *zap.Logger) *DefaultsResetter {
	return &DefaultsResetter{
		writer: settingWriter{
			settings:        settings,
			logReturnValues: params.LogReturnValues,
			logger:          logger.With(zap.String("component", "defaults")),
		},
	}
}

func (r *DefaultsResetter) Reset(key domain.SettingKey) domain.SettingOutcome {
	return r.writer.ensure(key, key.Unconstrained())
}

func (r *DefaultsResetter) ResetChargeCurrentLimit() domain.SettingOutcome {
	return r.Reset(domain.ChargeCurrentLimit)
}

func (r *DefaultsResetter) ResetDischargePowerLimit() domain.SettingOutcome {
	return r.Reset(domain.DischargePowerLimit)
}

func (r *DefaultsResetter) ResetGridSetPoint() domain.SettingOutcome {
	return r.Reset(domain.GridSetPoint)
}

// ResetAll resets charge current, discharge power and grid set-point, in that order.
func (r *DefaultsResetter) ResetAll() []domain.SettingOutcome {
	return []domain.SettingOutcome{
		r.ResetChargeCurrentLimit(),
		r.ResetDischargePowerLimit(),
		r.ResetGridSetPoint(),
	}
}
