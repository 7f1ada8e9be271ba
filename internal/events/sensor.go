package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/wattpilot2ess/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE        = "bridge"
	SENSOR_ID_WALLBOX_CONNECTION  = "wallbox_connection"
	SENSOR_ID_CAR_STATE           = "car_state"
	SENSOR_ID_CHARGE_MODE         = "charge_mode"
	SENSOR_ID_WALLBOX_POWER       = "wallbox_power"
	SENSOR_ID_WALLBOX_CURRENT     = "wallbox_current"
	SENSOR_ID_FORCE_SINGLE_PHASE  = "force_single_phase"
	SENSOR_ID_BATTERY_SOC         = "battery_soc"
	SENSOR_ID_MAX_CHARGE_CURRENT  = "max_charge_current"
	SENSOR_ID_MAX_DISCHARGE_POWER = "max_discharge_power"
	SENSOR_ID_GRID_SETPOINT       = "grid_setpoint"
	SENSOR_ID_TICK_ERRORS         = "tick_errors"
	STATE_CLASS_MEASUREMENT       = "measurement"
	DEVICE_CLASS_BATTERY          = "battery"
	DEVICE_CLASS_CURRENT          = "current"
	DEVICE_CLASS_POWER            = "power"
	DEVICE_CLASS_CONNECTIVITY     = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC       = "diagnostic"
	SENSOR_TYPE_SENSOR            = "sensor"
	SENSOR_TYPE_BINARY            = "binary_sensor"
)

// SettingSensorId is the sensor publishing the effective value of a storage setting.
func SettingSensorId(key domain.SettingKey) string {
	switch key {
	case domain.ChargeCurrentLimit:
		return SENSOR_ID_MAX_CHARGE_CURRENT
	case domain.DischargePowerLimit:
		return SENSOR_ID_MAX_DISCHARGE_POWER
	case domain.GridSetPoint:
		return SENSOR_ID_GRID_SETPOINT
	}
	return key.String()
}

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("wattpilot2ess_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "wattpilot2ess",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Wattpilot2ESS %s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device domain.Device) domain.Device {
	return domain.Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Bridge availability
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	// Wallbox link
	sensors = append(sensors, domain.GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_WALLBOX_CONNECTION,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Wallbox connection",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:lan-connect",
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_WALLBOX_CONNECTION),
	})

	// Errors of the last tick
	sensors = append(sensors, domain.GenericSensor{
		Device:           bridgeDevice,
		Id:               SENSOR_ID_TICK_ERRORS,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Control errors",
		StateClass:       STATE_CLASS_MEASUREMENT,
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(bridgeDevice.Id, SENSOR_ID_TICK_ERRORS),
	})

	return sensors
}

func WallboxSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Car state
	sensors = append(sensors, domain.GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_CAR_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Car state",
		Icon:       "mdi:car-electric",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_CAR_STATE),
	})

	// Charge mode
	sensors = append(sensors, domain.GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_CHARGE_MODE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charge mode",
		Icon:       "mdi:ev-station",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_CHARGE_MODE),
	})

	// Charging power
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_WALLBOX_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Wallbox power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_WALLBOX_POWER),
	})

	// Current per phase
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_WALLBOX_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Wallbox current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_WALLBOX_CURRENT),
	})

	// Single phase
	sensors = append(sensors, domain.GenericSensor{
		Device:     bridgeDevice,
		Id:         SENSOR_ID_FORCE_SINGLE_PHASE,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Force single phase",
		Icon:       "mdi:sine-wave",
		UniqueId:   uniqueId(bridgeDevice.Id, SENSOR_ID_FORCE_SINGLE_PHASE),
	})

	return sensors
}

func StorageSensors(bridgeDevice domain.Device) []domain.GenericSensor {

	var sensors []domain.GenericSensor

	// Battery SoC
	sensors = append(sensors, domain.GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(bridgeDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	for _, key := range domain.AllSettings {
		id := SettingSensorId(key)
		deviceClass := DEVICE_CLASS_POWER
		if key.Unit() == "A" {
			deviceClass = DEVICE_CLASS_CURRENT
		}
		sensors = append(sensors, domain.GenericSensor{
			Device:            bridgeDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              settingName(key),
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass,
			UnitOfMeasurement: key.Unit(),
			Icon:              "mdi:home-battery",
			UniqueId:          uniqueId(bridgeDevice.Id, id),
		})
	}

	return sensors
}

// AllSensors is every sensor published by the bridge.
func AllSensors(baseTopic string) []domain.GenericSensor {
	device := BridgeDevice(baseTopic)
	var sensors []domain.GenericSensor
	sensors = append(sensors, BridgeSensors(device)...)
	sensors = append(sensors, WallboxSensors(device)...)
	sensors = append(sensors, StorageSensors(device)...)
	return sensors
}

func settingName(key domain.SettingKey) string {
	switch key {
	case domain.ChargeCurrentLimit:
		return "Max charge current"
	case domain.DischargePowerLimit:
		return "Max discharge power"
	case domain.GridSetPoint:
		return "Grid set-point"
	}
	return key.String()
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
