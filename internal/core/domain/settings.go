package domain

import (
	"fmt"
	"math"
)

// SettingTolerance is the largest difference between two setting values that still counts as equal.
const SettingTolerance = 0.5

// SettingKey identifies one of the storage settings managed by the bridge.
type SettingKey int

const (
	ChargeCurrentLimit SettingKey = iota
	DischargePowerLimit
	GridSetPoint
)

var AllSettings = []SettingKey{ChargeCurrentLimit, DischargePowerLimit, GridSetPoint}

func (k SettingKey) String() string {
	switch k {
	case ChargeCurrentLimit:
		return "max_charge_current"
	case DischargePowerLimit:
		return "max_discharge_power"
	case GridSetPoint:
		return "grid_setpoint"
	}
	return fmt.Sprintf("SettingKey(%d)", int(k))
}

// Path is the object path of the setting on the Venus OS bus.
func (k SettingKey) Path() string {
	switch k {
	case ChargeCurrentLimit:
		return "/Settings/SystemSetup/MaxChargeCurrent"
	case DischargePowerLimit:
		return "/Settings/CGwacs/MaxDischargePower"
	case GridSetPoint:
		return "/Settings/CGwacs/AcPowerSetPoint"
	}
	return ""
}

// Unconstrained is the sentinel value that lets the storage system run without limits.
func (k SettingKey) Unconstrained() float64 {
	switch k {
	case ChargeCurrentLimit, DischargePowerLimit:
		return -1
	}
	return 0
}

// Integer reports whether the setting is stored as an integer on the bus.
func (k SettingKey) Integer() bool {
	return k == ChargeCurrentLimit
}

func (k SettingKey) Unit() string {
	if k == ChargeCurrentLimit {
		return "A"
	}
	return "W"
}

// SettingPath binds a setting to the bus service it is read from and written to.
type SettingPath struct {
	Key     SettingKey
	Service string
}

func (p SettingPath) Path() string {
	return p.Key.Path()
}

func (p SettingPath) String() string {
	return p.Service + p.Key.Path()
}

func SettingEquals(a, b float64) bool {
	return math.Abs(a-b) < SettingTolerance
}
