package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/metrics"
)

const (
	consumerIngest = "ingest"
	consumerLive   = "live"

	defaultIngestTimeout = 5 * time.Second
)

// Logger is the logging interface used by the Ingester.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Resolver maps a hardware id to its owning record.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (*device.Record, error)
}

// Mirror receives every stored sample, e.g. an InfluxDB writer.
type Mirror interface {
	WriteReading(r influxdb.Reading)
}

// LiveEvent is a validated reading pushed to the owner's live stream.
type LiveEvent struct {
	Kind       string  `json:"kind"` // graph or realtime
	DeviceName string  `json:"deviceName"`
	Reading    Reading `json:"reading"`
	OwnerEmail string  `json:"-"`
}

// Broadcaster fans live events out to connected clients.
type Broadcaster interface {
	Broadcast(ev LiveEvent)
}

// Ingester is the storage path for device readings. Its handlers are
// meant to be registered on the bus router alongside any number of other
// consumers; a bad message only ever affects itself.
type Ingester struct {
	store    Store
	resolver Resolver
	mirror   Mirror
	live     Broadcaster
	metrics  *metrics.Bridge
	logger   Logger
	now      func() time.Time
}

// NewIngester creates an ingester storing into store.
func NewIngester(store Store, resolver Resolver) *Ingester {
	return &Ingester{
		store:    store,
		resolver: resolver,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger.
func (in *Ingester) SetLogger(logger Logger) { in.logger = logger }

// SetMirror enables mirroring of stored samples.
func (in *Ingester) SetMirror(m Mirror) { in.mirror = m }

// SetBroadcaster enables pushing readings to live subscribers.
func (in *Ingester) SetBroadcaster(b Broadcaster) { in.live = b }

// SetMetrics enables message counters.
func (in *Ingester) SetMetrics(m *metrics.Bridge) { in.metrics = m }

// HandleGraph validates, attributes and stores one graph message.
// It has the bus handler signature.
func (in *Ingester) HandleGraph(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultIngestTimeout)
	defer cancel()

	sample, err := in.Ingest(ctx, payload)
	if err != nil {
		in.logDropped(topic, err)
		return nil
	}

	in.logger.Debug("telemetry stored", "device_id", sample.DeviceID, "owner", sample.OwnerEmail)
	return nil
}

// HandleRealtime pushes a realtime reading to the owner's live stream.
// Realtime readings are not stored.
func (in *Ingester) HandleRealtime(topic string, payload []byte) error {
	if in.live == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultIngestTimeout)
	defer cancel()

	reading, err := Validate(payload)
	if err != nil {
		in.metrics.ObserveMessage(consumerLive, metrics.OutcomeMalformed)
		return nil
	}
	rec, err := in.resolver.Resolve(ctx, reading.DeviceID)
	if err != nil {
		in.metrics.ObserveMessage(consumerLive, outcomeFor(err))
		return nil
	}

	in.live.Broadcast(LiveEvent{Kind: "realtime", DeviceName: rec.DeviceName, Reading: reading, OwnerEmail: rec.OwnerEmail})
	in.metrics.ObserveMessage(consumerLive, metrics.OutcomeOK)
	return nil
}

// Ingest runs the storage path for one payload and returns the stored sample.
//
// Errors:
//   - ErrMalformedPayload when the payload is not a valid reading
//   - device.ErrDeviceNotFound when nobody registered the device
func (in *Ingester) Ingest(ctx context.Context, payload []byte) (*Sample, error) {
	reading, err := Validate(payload)
	if err != nil {
		in.metrics.ObserveMessage(consumerIngest, metrics.OutcomeMalformed)
		return nil, err
	}

	rec, err := in.resolver.Resolve(ctx, reading.DeviceID)
	if err != nil {
		in.metrics.ObserveMessage(consumerIngest, outcomeFor(err))
		return nil, err
	}

	sample := &Sample{
		OwnerEmail:   rec.OwnerEmail,
		DeviceID:     rec.DeviceID,
		DeviceName:   rec.DeviceName,
		PlantName:    rec.PlantName,
		Temperature:  reading.Temperature,
		Humidity:     reading.Humidity,
		SoilMoisture: reading.SoilMoisture,
		RecordedAt:   in.now(),
	}
	if err := in.store.Append(ctx, sample); err != nil {
		in.metrics.ObserveMessage(consumerIngest, metrics.OutcomeError)
		return nil, err
	}
	in.metrics.ObserveMessage(consumerIngest, metrics.OutcomeOK)

	if in.mirror != nil {
		in.mirror.WriteReading(influxdb.Reading{
			OwnerEmail:   sample.OwnerEmail,
			DeviceID:     sample.DeviceID,
			DeviceName:   sample.DeviceName,
			PlantName:    sample.PlantName,
			Temperature:  sample.Temperature,
			Humidity:     sample.Humidity,
			SoilMoisture: sample.SoilMoisture,
			RecordedAt:   sample.RecordedAt,
		})
	}
	if in.live != nil {
		in.live.Broadcast(LiveEvent{Kind: "graph", DeviceName: sample.DeviceName, Reading: reading, OwnerEmail: sample.OwnerEmail})
	}
	return sample, nil
}

func (in *Ingester) logDropped(topic string, err error) {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		in.logger.Warn("dropping malformed telemetry", "topic", topic, "error", err)
	case errors.Is(err, device.ErrDeviceNotFound):
		in.logger.Warn("dropping telemetry from unknown device", "topic", topic)
	default:
		in.logger.Error("storing telemetry failed", "topic", topic, "error", err)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return metrics.OutcomeMalformed
	case errors.Is(err, device.ErrDeviceNotFound):
		return metrics.OutcomeUnknown
	default:
		return metrics.OutcomeError
	}
}
