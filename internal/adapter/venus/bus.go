package venus

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
)

const (
	busItemGetValue = "com.victronenergy.BusItem.GetValue"
	busItemSetValue = "com.victronenergy.BusItem.SetValue"
	dbusListNames   = "org.freedesktop.DBus.ListNames"
)

// bus kinds accepted by ConnectBus
const (
	BusAuto    = "auto"
	BusSystem  = "system"
	BusSession = "session"
)

// Bus is the part of the Venus OS message bus the registry needs.
type Bus interface {
	ListNames() ([]string, error)
	GetValue(service, path string) (any, error)
	// SetValue returns the status code of the bus item, 0 on success.
	SetValue(service, path string, value any) (int32, error)
}

type DBus struct {
	conn *dbus.Conn
}

// ConnectBus opens the session bus when DBUS_SESSION_BUS_ADDRESS is set and kind is auto,
// the system bus otherwise.
func ConnectBus(kind string) (*DBus, error) {
	if kind == BusAuto {
		kind = BusSystem
		if _, ok := os.LookupEnv("DBUS_SESSION_BUS_ADDRESS"); ok {
			kind = BusSession
		}
	}

	var conn *dbus.Conn
	var err error
	switch kind {
	case BusSystem:
		conn, err = dbus.ConnectSystemBus()
	case BusSession:
		conn, err = dbus.ConnectSessionBus()
	default:
		return nil, fmt.Errorf("venus: unknown bus %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("venus: connect %s bus: %w", kind, err)
	}
	return &DBus{conn: conn}, nil
}

func (b *DBus) ListNames() ([]string, error) {
	var names []string
	if err := b.conn.BusObject().Call(dbusListNames, 0).Store(&names); err != nil {
		return nil, err
	}
	return names, nil
}

func (b *DBus) GetValue(service, path string) (any, error) {
	var v dbus.Variant
	if err := b.conn.Object(service, dbus.ObjectPath(path)).Call(busItemGetValue, 0).Store(&v); err != nil {
		return nil, err
	}
	return v.Value(), nil
}

func (b *DBus) SetValue(service, path string, value any) (int32, error) {
	var status int32
	call := b.conn.Object(service, dbus.ObjectPath(path)).Call(busItemSetValue, 0, dbus.MakeVariant(value))
	if err := call.Store(&status); err != nil {
		return 0, err
	}
	return status, nil
}

func (b *DBus) Close() error {
	return b.conn.Close()
}

// ensure interface compliance
var _ Bus = (*DBus)(nil)
