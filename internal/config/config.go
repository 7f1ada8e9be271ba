package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "wattpilot2ess"

// SoC sources
const (
	SoCSourceDBus   = "dbus"
	SoCSourceModbus = "modbus"
)

type Config struct {
	LogLevel  zapcore.Level
	PidFile   string          `mapstructure:"pid_file"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
	Wattpilot WattpilotConfig `mapstructure:"wattpilot"`
	Venus     VenusConfig     `mapstructure:"venus"`
	Control   ControlConfig   `mapstructure:"control"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

type WattpilotConfig struct {
	Host              string
	Password          string
	DialTimeoutMillis uint32 `mapstructure:"dial_timeout_millis"`
}

type VenusConfig struct {
	Bus             string
	SettingsService string `mapstructure:"settings_service"`
	VEBusService    string `mapstructure:"vebus_service"`
	BatteryService  string `mapstructure:"battery_service"`
	SoCSource       string `mapstructure:"soc_source"`
	Modbus          VenusModbusConfig
}

type VenusModbusConfig struct {
	Host          string
	Port          uint
	UnitId        uint8  `mapstructure:"unit_id"`
	SoCRegister   uint16 `mapstructure:"soc_register"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type ControlConfig struct {
	WaitIntervalSeconds       uint32  `mapstructure:"wait_interval_seconds"`
	SettleSeconds             uint32  `mapstructure:"settle_seconds"`
	PhaseSwitchDelayMillis    uint32  `mapstructure:"phase_switch_delay_millis"`
	ReconnectCooldownSeconds  uint32  `mapstructure:"reconnect_cooldown_seconds"`
	MaxChargeCurrent          uint32  `mapstructure:"max_charge_current"`
	EcoMaxDischargePower      float64 `mapstructure:"eco_max_discharge_power"`
	NextTripMaxDischargePower float64 `mapstructure:"next_trip_max_discharge_power"`
	EcoChargeAmps             uint    `mapstructure:"eco_charge_amps"`
	NextTripChargeAmps        uint    `mapstructure:"next_trip_charge_amps"`
	DefaultChargeAmps         uint    `mapstructure:"default_charge_amps"`
	LogReturnValues           bool    `mapstructure:"log_return_values"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// ControlParams is the immutable tuning handed to the control loop.
func (c Config) ControlParams() domain.ControlParams {
	return domain.ControlParams{
		WaitInterval:                  time.Duration(c.Control.WaitIntervalSeconds) * time.Second,
		SettleDelay:                   time.Duration(c.Control.SettleSeconds) * time.Second,
		PhaseSwitchDelay:              time.Duration(c.Control.PhaseSwitchDelayMillis) * time.Millisecond,
		ReconnectCooldown:             time.Duration(c.Control.ReconnectCooldownSeconds) * time.Second,
		MaxChargeCurrent:              c.Control.MaxChargeCurrent,
		EcoMaxDischargePowerWatt:      c.Control.EcoMaxDischargePower,
		NextTripMaxDischargePowerWatt: c.Control.NextTripMaxDischargePower,
		EcoChargeAmps:                 c.Control.EcoChargeAmps,
		NextTripChargeAmps:            c.Control.NextTripChargeAmps,
		DefaultChargeAmps:             c.Control.DefaultChargeAmps,
		LogReturnValues:               c.Control.LogReturnValues,
	}
}

// HealthMaxAge is how long the control loop may stay silent before it is reported unhealthy.
func (c Config) HealthMaxAge() time.Duration {
	p := c.ControlParams()
	return 2*p.ReconnectCooldown + p.WaitInterval
}

// NewViper returns a viper instance with every default set and environment lookup enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("pid_file", "")
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)

	v.SetDefault("wattpilot.host", "")
	v.SetDefault("wattpilot.password", "")
	v.SetDefault("wattpilot.dial_timeout_millis", 5000)

	v.SetDefault("venus.bus", "auto")
	v.SetDefault("venus.settings_service", "com.victronenergy.settings")
	v.SetDefault("venus.vebus_service", "com.victronenergy.vebus.ttyO1")
	v.SetDefault("venus.battery_service", "com.victronenergy.battery.socketcan_can0")
	v.SetDefault("venus.soc_source", SoCSourceDBus)
	v.SetDefault("venus.modbus.host", "")
	v.SetDefault("venus.modbus.port", 502)
	v.SetDefault("venus.modbus.unit_id", 100)
	v.SetDefault("venus.modbus.soc_register", 843)
	v.SetDefault("venus.modbus.timeout_millis", 1000)

	v.SetDefault("control.wait_interval_seconds", 3)
	v.SetDefault("control.settle_seconds", 1)
	v.SetDefault("control.phase_switch_delay_millis", 1000)
	v.SetDefault("control.reconnect_cooldown_seconds", 60)
	v.SetDefault("control.max_charge_current", 35)
	v.SetDefault("control.eco_max_discharge_power", 1380)
	v.SetDefault("control.next_trip_max_discharge_power", 2180)
	v.SetDefault("control.eco_charge_amps", 16)
	v.SetDefault("control.next_trip_charge_amps", 8)
	v.SetDefault("control.default_charge_amps", 16)
	v.SetDefault("control.log_return_values", false)

	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "wattpilot2ess")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
}

// Load reads the optional yaml file, unmarshals and validates the configuration.
// An empty configFile falls back to the CONFIG_FILE environment variable.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
		slog.Info("Using config", "file", configFile)
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = parseLogLevel(v.GetString("log_level"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "trace", "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	}
	return zap.InfoLevel
}

func (cfg *Config) validate() error {
	if cfg.Wattpilot.Host == "" {
		return errors.New("wallbox address is required (argument or wattpilot.host)")
	}
	if cfg.Wattpilot.Password == "" {
		return errors.New("wallbox password is required (argument or wattpilot.password)")
	}

	switch cfg.Venus.Bus {
	case "auto", "system", "session":
	default:
		return fmt.Errorf("config param venus.bus must be one of auto, system, session, got %q", cfg.Venus.Bus)
	}
	switch cfg.Venus.SoCSource {
	case SoCSourceDBus:
	case SoCSourceModbus:
		if cfg.Venus.Modbus.Host == "" {
			return errors.New("config param venus.modbus.host is required when venus.soc_source is modbus")
		}
	default:
		return fmt.Errorf("config param venus.soc_source must be dbus or modbus, got %q", cfg.Venus.SoCSource)
	}

	// check bounds
	if cfg.Control.WaitIntervalSeconds < 1 {
		return errors.New("config param control.wait_interval_seconds should be >= 1")
	}
	if cfg.Control.ReconnectCooldownSeconds < 1 {
		return errors.New("config param control.reconnect_cooldown_seconds should be >= 1")
	}
	if cfg.Control.MaxChargeCurrent == 0 {
		return errors.New("config param control.max_charge_current should be > 0")
	}
	if cfg.Control.EcoMaxDischargePower < 0 || cfg.Control.NextTripMaxDischargePower < 0 {
		return errors.New("config params control.*_max_discharge_power should be >= 0")
	}
	for name, amps := range map[string]uint{
		"eco_charge_amps":       cfg.Control.EcoChargeAmps,
		"next_trip_charge_amps": cfg.Control.NextTripChargeAmps,
		"default_charge_amps":   cfg.Control.DefaultChargeAmps,
	} {
		if amps < 6 || amps > 32 {
			return fmt.Errorf("config param control.%s should be between 6 and 32", name)
		}
	}

	if cfg.MQTT.Enable {
		// check and fix base topic
		baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic

		// check and fix homeassistant discovery topic
		hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = hadBaseTopic
	}
	return nil
}

// Redacted is a copy safe to print.
func (cfg Config) Redacted() Config {
	cfg.Wattpilot.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	return cfg
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	if !topicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
