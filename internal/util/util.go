package util

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/berfenger/wattpilot2ess/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Wattpilot: config.WattpilotConfig{
			Host:              "127.0.0.1",
			Password:          "secret",
			DialTimeoutMillis: 1000,
		},
		Venus: config.VenusConfig{
			Bus:             "session",
			SettingsService: "com.victronenergy.settings",
			VEBusService:    "com.victronenergy.vebus.ttyO1",
			BatteryService:  "com.victronenergy.battery.socketcan_can0",
			SoCSource:       config.SoCSourceDBus,
		},
		Control: config.ControlConfig{
			WaitIntervalSeconds:       3,
			SettleSeconds:             1,
			PhaseSwitchDelayMillis:    1000,
			ReconnectCooldownSeconds:  60,
			MaxChargeCurrent:          35,
			EcoMaxDischargePower:      1380,
			NextTripMaxDischargePower: 2180,
			EcoChargeAmps:             16,
			NextTripChargeAmps:        8,
			DefaultChargeAmps:         16,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "wattpilot2ess",
			HADiscoveryTopic: "homeassistant",
		},
		Port: 8080,
	}
}

// WritePidFile writes the current process id to path. The returned func removes the file.
func WritePidFile(path string) (func() error, error) {
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid != os.Getpid() && processAlive(pid) {
			return nil, fmt.Errorf("pid file %s: process %d is still running", path, pid)
		}
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}, nil
}

func processAlive(pid int) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}
