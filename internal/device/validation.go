package device

import (
	"fmt"
	"math"
	"strings"
)

const (
	// DeviceIDLength is the length of the hardware id printed on every unit.
	DeviceIDLength = 12

	maxNameLength = 100
)

// NormalizeDeviceID trims and uppercases a device id. Hardware ids are
// case-insensitive but stored uppercase.
func NormalizeDeviceID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidateDeviceID checks a device id as typed by a grower.
func ValidateDeviceID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidDeviceID)
	}
	if len(id) != DeviceIDLength {
		return fmt.Errorf("%w: must be %d characters", ErrInvalidDeviceID, DeviceIDLength)
	}
	return nil
}

// ValidateName checks a device name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidatePlantName checks a plant name.
func ValidatePlantName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidPlantName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidPlantName, maxNameLength)
	}
	return nil
}

// ValidateThresholds requires every bound to be a finite number. Inverted
// bounds are accepted; the device firmware treats them as "never alarm".
func ValidateThresholds(t Thresholds) error {
	bounds := []struct {
		name  string
		value float64
	}{
		{"minTemperature", t.MinTemperature},
		{"maxTemperature", t.MaxTemperature},
		{"minHumidity", t.MinHumidity},
		{"maxHumidity", t.MaxHumidity},
		{"minSoilMoisture", t.MinSoilMoisture},
		{"maxSoilMoisture", t.MaxSoilMoisture},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidThreshold, b.name)
		}
	}
	return nil
}

// ValidateRecord performs full validation of a record before it is stored.
func ValidateRecord(r *Record) error {
	if r == nil {
		return ErrInvalidDevice
	}
	if strings.TrimSpace(r.OwnerEmail) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidDevice)
	}
	if err := ValidateDeviceID(r.DeviceID); err != nil {
		return err
	}
	if err := ValidateName(r.DeviceName); err != nil {
		return err
	}
	if err := ValidatePlantName(r.PlantName); err != nil {
		return err
	}
	return ValidateThresholds(r.Thresholds)
}
