package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
)

// commandQoS is at-least-once: the broker acknowledges every command.
const commandQoS byte = 1

// Publisher is the part of the bus connection the dispatcher needs.
type Publisher interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Command is one actuator instruction for one device.
type Command struct {
	DeviceID   string
	Capability Capability
	Value      any
}

// Topic returns the command topic for the capability.
func (c Command) Topic() string {
	return mqtt.Topics{}.Command(string(c.Capability))
}

// Payload validates the command and encodes {deviceId, <key>: value}.
func (c Command) Payload() ([]byte, error) {
	if strings.TrimSpace(c.DeviceID) == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidCommand)
	}
	if _, err := ParseCapability(string(c.Capability)); err != nil {
		return nil, err
	}
	v, err := c.Capability.NormalizeValue(c.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"deviceId":                c.DeviceID,
		c.Capability.PayloadKey(): v,
	})
}

// Dispatcher publishes commands and reports a single outcome per call.
//
// Thread Safety: Send may be called concurrently.
type Dispatcher struct {
	pub     Publisher
	metrics *metrics.Bridge
	logger  Logger
}

// NewDispatcher creates a dispatcher publishing through pub.
func NewDispatcher(pub Publisher) *Dispatcher {
	return &Dispatcher{pub: pub, logger: noopLogger{}}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) { d.logger = logger }

// SetMetrics attaches bridge metrics.
func (d *Dispatcher) SetMetrics(m *metrics.Bridge) { d.metrics = m }

// Send publishes cmd and returns once the broker has acknowledged it.
//
// The deadline covers only the publish and is released as soon as an
// outcome is known, so a call returns exactly one of nil, ErrTimeout or
// ErrTransport (or a validation error before anything is published).
func (d *Dispatcher) Send(ctx context.Context, cmd Command, timeout time.Duration) error {
	if timeout <= 0 {
		return ErrInvalidTimeout
	}
	payload, err := cmd.Payload()
	if err != nil {
		return err
	}

	start := time.Now()
	pubCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err = classify(d.pub.PublishContext(pubCtx, cmd.Topic(), payload, commandQoS, false))
	d.metrics.ObserveCommand(string(cmd.Capability), outcomeFor(err), time.Since(start))
	if err != nil {
		d.logger.Warn("command not delivered",
			"capability", cmd.Capability, "device_id", cmd.DeviceID, "error", err)
		return err
	}
	d.logger.Debug("command published", "capability", cmd.Capability, "device_id", cmd.DeviceID)
	return nil
}

// classify maps a bus error onto the dispatcher's two failure kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mqtt.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeTransport
	}
}
