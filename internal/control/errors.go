package control

import "errors"

var (
	// ErrTransport is returned when the broker or the link fails to take
	// a publish. It is surfaced to the caller and never retried here.
	ErrTransport = errors.New("control: transport failure")

	// ErrTimeout is returned when the deadline passes before the broker
	// acknowledges the publish.
	ErrTimeout = errors.New("control: command timed out")

	// ErrInvalidCapability is returned for an unknown actuator.
	ErrInvalidCapability = errors.New("control: unknown capability")

	// ErrInvalidValue is returned when the command value has the wrong type.
	ErrInvalidValue = errors.New("control: invalid command value")

	// ErrInvalidCommand is returned when a command has no device id.
	ErrInvalidCommand = errors.New("control: invalid command")

	// ErrInvalidTimeout is returned for a non-positive deadline.
	ErrInvalidTimeout = errors.New("control: timeout must be positive")
)
