package port

import "github.com/berfenger/wattpilot2ess/internal/core/domain"

// SettingsClient reads and writes the storage settings. Each call is a single remote round trip.
type SettingsClient interface {
	Get(key domain.SettingKey) (float64, error)
	Set(key domain.SettingKey, value float64) error
}

// SoCReader reads the battery state of charge in percent.
type SoCReader interface {
	StateOfCharge() (float64, error)
}
