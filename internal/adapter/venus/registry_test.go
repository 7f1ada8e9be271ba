package venus

import (
	"errors"
	"testing"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type setCall struct {
	service string
	path    string
	value   any
}

type fakeBus struct {
	names     []string
	listErr   error
	values    map[string]any
	getErr    error
	setStatus int32
	sets      []setCall
}

func newFakeBus(names ...string) *fakeBus {
	return &fakeBus{names: names, values: map[string]any{}}
}

func (b *fakeBus) ListNames() ([]string, error) {
	return b.names, b.listErr
}

func (b *fakeBus) GetValue(service, path string) (any, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	v, ok := b.values[service+path]
	if !ok {
		return nil, errors.New("org.freedesktop.DBus.Error.ServiceUnknown")
	}
	return v, nil
}

func (b *fakeBus) SetValue(service, path string, value any) (int32, error) {
	b.sets = append(b.sets, setCall{service: service, path: path, value: value})
	if b.setStatus == 0 {
		b.values[service+path] = value
	}
	return b.setStatus, nil
}

var testConfig = RegistryConfig{
	SettingsService: "com.victronenergy.settings",
	VEBusService:    "com.victronenergy.vebus.ttyO1",
	BatteryService:  "com.victronenergy.battery.socketcan_can0",
}

func TestRegistryUsesSettingsService(t *testing.T) {
	require := require.New(t)

	bus := newFakeBus("org.freedesktop.DBus", "com.victronenergy.settings")
	reg, err := NewRegistry(bus, testConfig, zap.NewNop())
	require.NoError(err)

	for _, key := range domain.AllSettings {
		p, ok := reg.Path(key)
		require.True(ok)
		require.Equal("com.victronenergy.settings", p.Service)
	}
}

func TestRegistryPrefersVEBusService(t *testing.T) {
	require := require.New(t)

	bus := newFakeBus("com.victronenergy.settings", "com.victronenergy.vebus.ttyO1")
	bus.values["com.victronenergy.vebus.ttyO1/Settings/CGwacs/MaxDischargePower"] = 1380.0
	reg, err := NewRegistry(bus, testConfig, zap.NewNop())
	require.NoError(err)

	v, err := reg.Get(domain.DischargePowerLimit)
	require.NoError(err)
	require.Equal(1380.0, v)
}

func TestRegistryListNamesFailure(t *testing.T) {
	bus := newFakeBus()
	bus.listErr = errors.New("connection refused")
	_, err := NewRegistry(bus, testConfig, zap.NewNop())
	require.Error(t, err)
}

func TestRegistryGet(t *testing.T) {
	require := require.New(t)

	bus := newFakeBus("com.victronenergy.settings")
	bus.values["com.victronenergy.settings/Settings/SystemSetup/MaxChargeCurrent"] = int32(-1)
	bus.values["com.victronenergy.settings/Settings/CGwacs/AcPowerSetPoint"] = []int32{}
	reg, err := NewRegistry(bus, testConfig, zap.NewNop())
	require.NoError(err)

	v, err := reg.Get(domain.ChargeCurrentLimit)
	require.NoError(err)
	require.Equal(-1.0, v)

	_, err = reg.Get(domain.GridSetPoint)
	require.ErrorIs(err, ErrInvalidValue)

	_, err = reg.Get(domain.DischargePowerLimit)
	require.Error(err)
}

func TestRegistrySetTypes(t *testing.T) {
	require := require.New(t)

	bus := newFakeBus("com.victronenergy.settings")
	reg, err := NewRegistry(bus, testConfig, zap.NewNop())
	require.NoError(err)

	require.NoError(reg.Set(domain.ChargeCurrentLimit, 18))
	require.NoError(reg.Set(domain.GridSetPoint, 3500))

	require.Equal([]setCall{
		{service: "com.victronenergy.settings", path: "/Settings/SystemSetup/MaxChargeCurrent", value: int32(18)},
		{service: "com.victronenergy.settings", path: "/Settings/CGwacs/AcPowerSetPoint", value: 3500.0},
	}, bus.sets)
}

func TestRegistrySetRejected(t *testing.T) {
	bus := newFakeBus("com.victronenergy.settings")
	bus.setStatus = -1
	reg, err := NewRegistry(bus, testConfig, zap.NewNop())
	require.NoError(t, err)

	require.Error(t, reg.Set(domain.DischargePowerLimit, 2180))
}

func TestRegistryStateOfCharge(t *testing.T) {
	require := require.New(t)

	bus := newFakeBus("com.victronenergy.settings", "com.victronenergy.vebus.ttyO1")
	bus.values["com.victronenergy.battery.socketcan_can0/Soc"] = 64.5
	reg, err := NewRegistry(bus, testConfig, zap.NewNop())
	require.NoError(err)

	soc, err := reg.StateOfCharge()
	require.NoError(err)
	require.Equal(64.5, soc)
}

func TestToFloat(t *testing.T) {
	require := require.New(t)

	for _, v := range []any{int32(7), int64(7), uint16(7), uint32(7), float32(7), 7.0, uint8(7)} {
		f, err := toFloat(v)
		require.NoError(err)
		require.Equal(7.0, f)
	}
	_, err := toFloat("7")
	require.ErrorIs(err, ErrInvalidValue)
	_, err = toFloat(nil)
	require.ErrorIs(err, ErrInvalidValue)
}
