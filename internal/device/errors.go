package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // 404
//	}
var (
	// ErrDeviceNotFound is returned when no record matches the lookup.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when the owner already registered the device id.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrDeviceNameTaken is returned when the owner already uses the device name.
	ErrDeviceNameTaken = errors.New("device: name already in use")

	// ErrInvalidDevice is returned when record validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceID is returned when a device id is empty or not 12 characters.
	ErrInvalidDeviceID = errors.New("device: invalid device id")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid device name")

	// ErrInvalidPlantName is returned when a plant name is empty or too long.
	ErrInvalidPlantName = errors.New("device: invalid plant name")

	// ErrInvalidThreshold is returned when a threshold is not a finite number.
	ErrInvalidThreshold = errors.New("device: invalid threshold")
)
