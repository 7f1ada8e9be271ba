package domain

import "fmt"

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// CarState is the car-connection state reported by the wallbox.
type CarState int

const (
	CarStateUnknown CarState = iota
	CarStateNoCar
	CarStateCharging
	CarStateReady
	CarStateComplete
)

func (s CarState) String() string {
	switch s {
	case CarStateNoCar:
		return "no car"
	case CarStateCharging:
		return "charging"
	case CarStateReady:
		return "ready"
	case CarStateComplete:
		return "complete"
	}
	return "unknown"
}

// ChargeMode is the charging mode selected on the wallbox.
type ChargeMode int

const (
	ChargeModeUnknown ChargeMode = iota
	ChargeModeDefault
	ChargeModeEco
	ChargeModeNextTrip
)

func (m ChargeMode) String() string {
	switch m {
	case ChargeModeDefault:
		return "Default"
	case ChargeModeEco:
		return "Eco"
	case ChargeModeNextTrip:
		return "Next Trip"
	}
	return "unknown"
}

// PhaseSwitchMode values are the raw psm values understood by the wallbox.
type PhaseSwitchMode int

const (
	PhaseSwitchAuto   PhaseSwitchMode = 0
	PhaseSwitchForce1 PhaseSwitchMode = 1
	PhaseSwitchForce3 PhaseSwitchMode = 2
)

func (m PhaseSwitchMode) String() string {
	switch m {
	case PhaseSwitchAuto:
		return "auto"
	case PhaseSwitchForce1:
		return "force_1"
	case PhaseSwitchForce3:
		return "force_3"
	}
	return fmt.Sprintf("PhaseSwitchMode(%d)", int(m))
}

// ActuatorSnapshot is read once per tick. All decisions of a tick use the same snapshot.
type ActuatorSnapshot struct {
	CarState         CarState
	Mode             ChargeMode
	AmpsPerPhase     uint
	ForceSinglePhase bool
	PowerKW          float64
}

func (s ActuatorSnapshot) PowerWatt() float64 {
	return s.PowerKW * 1000
}
