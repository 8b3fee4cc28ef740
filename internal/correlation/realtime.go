package correlation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
)

// OwnerResolver maps a hardware id to its owning record.
type OwnerResolver interface {
	Resolve(ctx context.Context, deviceID string) (*device.Record, error)
}

// LiveReading is a realtime reading attributed to the requester's device.
type LiveReading struct {
	Device  device.Record
	Reading telemetry.Reading
}

// RealtimeQuery waits for live readings on behalf of one owner.
type RealtimeQuery struct {
	registry *Registry
	resolver OwnerResolver
	topic    string
}

// NewRealtimeQuery creates a query waiting on the realtime topic.
func NewRealtimeQuery(registry *Registry, resolver OwnerResolver) *RealtimeQuery {
	return &RealtimeQuery{
		registry: registry,
		resolver: resolver,
		topic:    mqtt.Topics{}.Realtime(),
	}
}

// Await returns the next realtime reading from any device owned by
// ownerEmail, or from deviceName only when it is non-empty.
//
// Readings that fail validation, come from unknown devices or belong to
// another owner are not matches; the wait continues until the timeout.
func (q *RealtimeQuery) Await(ctx context.Context, ownerEmail, deviceName string, timeout time.Duration) (LiveReading, error) {
	// Attribution happens once, inside the predicate. The winner is looked
	// up by payload so a record deleted after the match cannot undo it.
	var (
		mu      sync.Mutex
		matched = make(map[string]LiveReading)
	)
	pred := func(ctx context.Context, msg Message) bool {
		live, ok := q.attribute(ctx, msg, ownerEmail, deviceName)
		if ok {
			mu.Lock()
			matched[string(msg.Payload)] = live
			mu.Unlock()
		}
		return ok
	}

	msg, err := q.registry.Await(ctx, q.topic, pred, timeout)
	if err != nil {
		return LiveReading{}, err
	}

	mu.Lock()
	defer mu.Unlock()
	return matched[string(msg.Payload)], nil
}

func (q *RealtimeQuery) attribute(ctx context.Context, msg Message, ownerEmail, deviceName string) (LiveReading, bool) {
	reading, err := telemetry.Validate(msg.Payload)
	if err != nil {
		return LiveReading{}, false
	}
	rec, err := q.resolver.Resolve(ctx, reading.DeviceID)
	if err != nil {
		if !errors.Is(err, device.ErrDeviceNotFound) {
			q.registry.logger.Error("resolving realtime device failed", "device_id", reading.DeviceID, "error", err)
		}
		return LiveReading{}, false
	}
	if rec.OwnerEmail != ownerEmail {
		return LiveReading{}, false
	}
	if deviceName != "" && rec.DeviceName != deviceName {
		return LiveReading{}, false
	}
	return LiveReading{Device: *rec, Reading: reading}, true
}
