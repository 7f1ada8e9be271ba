package venus

import (
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/wattpilot2ess/internal/core/port"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type ModbusConfig struct {
	Host        string
	Port        uint
	UnitID      uint8
	SoCRegister uint16
	Timeout     time.Duration
}

// ModbusSoCReader reads the battery state of charge from the Modbus-TCP server of the GX device.
// The connection is opened on first use and reopened after a failed read.
type ModbusSoCReader struct {
	client   *modbus.ModbusClient
	register uint16
	logger   *zap.Logger

	mu   sync.Mutex
	open bool
}

func NewModbusSoCReader(cfg ModbusConfig, logger *zap.Logger) (*ModbusSoCReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port),
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := client.SetUnitId(cfg.UnitID); err != nil {
		return nil, err
	}
	return &ModbusSoCReader{
		client:   client,
		register: cfg.SoCRegister,
		logger:   logger.With(zap.String("component", "venus_modbus"), zap.Uint8("unit_id", cfg.UnitID)),
	}, nil
}

func (r *ModbusSoCReader) StateOfCharge() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		if err := r.client.Open(); err != nil {
			return 0, fmt.Errorf("venus: modbus open: %w", err)
		}
		r.open = true
	}

	start := time.Now()
	v, err := r.client.ReadRegister(r.register, modbus.HOLDING_REGISTER)
	r.logger.Sugar().Debugf("modbus [ReadRegister %d]: %d millis", r.register, time.Since(start).Milliseconds())
	if err != nil {
		r.closeLocked()
		return 0, fmt.Errorf("venus: modbus read register %d: %w", r.register, err)
	}
	return float64(v), nil
}

func (r *ModbusSoCReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *ModbusSoCReader) closeLocked() error {
	if !r.open {
		return nil
	}
	r.open = false
	return r.client.Close()
}

// ensure interface compliance
var _ port.SoCReader = (*ModbusSoCReader)(nil)
