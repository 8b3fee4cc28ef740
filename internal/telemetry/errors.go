package telemetry

import "errors"

var (
	// ErrMalformedPayload is returned when a bus payload is not a valid reading.
	// The returned error wraps it with the offending field.
	ErrMalformedPayload = errors.New("telemetry: malformed payload")

	// ErrNoTelemetry is returned when a device has no stored samples.
	ErrNoTelemetry = errors.New("telemetry: no samples for device")

	// ErrInvalidAttribute is returned for an unknown reading attribute.
	ErrInvalidAttribute = errors.New("telemetry: invalid attribute")
)
