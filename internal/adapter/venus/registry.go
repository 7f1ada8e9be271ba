// Package venus reads and writes the energy-storage settings of a Victron Venus OS device.
package venus

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"
	"github.com/berfenger/wattpilot2ess/internal/core/port"

	"go.uber.org/zap"
)

// ErrInvalidValue is returned for bus items holding no usable number.
var ErrInvalidValue = errors.New("venus: invalid value")

const socPath = "/Soc"

type RegistryConfig struct {
	SettingsService string
	VEBusService    string
	BatteryService  string
}

// Registry binds every managed setting to the bus service that owns it. The binding is
// resolved once, when the registry is built.
type Registry struct {
	bus     Bus
	paths   map[domain.SettingKey]domain.SettingPath
	battery string
	logger  *zap.Logger
}

func NewRegistry(bus Bus, cfg RegistryConfig, logger *zap.Logger) (*Registry, error) {
	logger = logger.With(zap.String("component", "venus"))

	names, err := bus.ListNames()
	if err != nil {
		return nil, fmt.Errorf("venus: list bus names: %w", err)
	}

	service := cfg.SettingsService
	if cfg.VEBusService != "" && slices.Contains(names, cfg.VEBusService) {
		logger.Info("venus: vebus service present, using it for settings", zap.String("service", cfg.VEBusService))
		service = cfg.VEBusService
	}

	paths := make(map[domain.SettingKey]domain.SettingPath, len(domain.AllSettings))
	for _, key := range domain.AllSettings {
		paths[key] = domain.SettingPath{Key: key, Service: service}
	}
	return &Registry{
		bus:     bus,
		paths:   paths,
		battery: cfg.BatteryService,
		logger:  logger,
	}, nil
}

func (r *Registry) Path(key domain.SettingKey) (domain.SettingPath, bool) {
	p, ok := r.paths[key]
	return p, ok
}

func (r *Registry) Get(key domain.SettingKey) (float64, error) {
	p, ok := r.paths[key]
	if !ok {
		return 0, fmt.Errorf("venus: unknown setting %s", key)
	}
	v, err := r.bus.GetValue(p.Service, p.Path())
	if err != nil {
		return 0, fmt.Errorf("venus: get %s: %w", p, err)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("venus: get %s: %w", p, err)
	}
	return f, nil
}

// Set writes an int32 for integer settings and a float64 otherwise.
func (r *Registry) Set(key domain.SettingKey, value float64) error {
	p, ok := r.paths[key]
	if !ok {
		return fmt.Errorf("venus: unknown setting %s", key)
	}
	var wire any = value
	if key.Integer() {
		wire = int32(math.Round(value))
	}
	status, err := r.bus.SetValue(p.Service, p.Path(), wire)
	if err != nil {
		return fmt.Errorf("venus: set %s: %w", p, err)
	}
	if status != 0 {
		return fmt.Errorf("venus: set %s: bus item returned status %d", p, status)
	}
	return nil
}

func (r *Registry) StateOfCharge() (float64, error) {
	v, err := r.bus.GetValue(r.battery, socPath)
	if err != nil {
		return 0, fmt.Errorf("venus: get %s%s: %w", r.battery, socPath, err)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("venus: get %s%s: %w", r.battery, socPath, err)
	}
	return f, nil
}

// toFloat accepts the numeric types a bus item may carry. Venus OS reports an
// invalid item as an empty array.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%w: %v (%T)", ErrInvalidValue, v, v)
}

// ensure interface compliance
var _ port.SettingsClient = (*Registry)(nil)
var _ port.SoCReader = (*Registry)(nil)
