package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
)

// ThresholdPublisher pushes alarm bounds to devices, one topic per attribute.
type ThresholdPublisher struct {
	pub     Publisher
	metrics *metrics.Bridge
	logger  Logger
}

// NewThresholdPublisher creates a publisher sending through pub.
func NewThresholdPublisher(pub Publisher) *ThresholdPublisher {
	return &ThresholdPublisher{pub: pub, logger: noopLogger{}}
}

// SetLogger sets the logger for the publisher.
func (p *ThresholdPublisher) SetLogger(logger Logger) { p.logger = logger }

// SetMetrics attaches bridge metrics.
func (p *ThresholdPublisher) SetMetrics(m *metrics.Bridge) { p.metrics = m }

// thresholdMessage is one attribute's slice of the thresholds.
type thresholdMessage struct {
	attribute string
	payload   map[string]any
}

func split(ownerEmail string, t device.Thresholds) []thresholdMessage {
	msgs := []thresholdMessage{
		{"temperature", map[string]any{"minTemperature": t.MinTemperature, "maxTemperature": t.MaxTemperature}},
		{"humidity", map[string]any{"minHumidity": t.MinHumidity, "maxHumidity": t.MaxHumidity}},
		{"soilMoisture", map[string]any{"minSoilMoisture": t.MinSoilMoisture, "maxSoilMoisture": t.MaxSoilMoisture}},
	}
	if ownerEmail != "" {
		for _, m := range msgs {
			m.payload["userEmail"] = ownerEmail
		}
	}
	return msgs
}

// PublishInitial sends the thresholds of a newly registered device,
// tagged with the owner's email.
func (p *ThresholdPublisher) PublishInitial(ctx context.Context, ownerEmail string, t device.Thresholds, timeout time.Duration) error {
	return p.publish(ctx, split(ownerEmail, t), mqtt.Topics{}.Threshold, timeout)
}

// PublishModified sends changed thresholds on the modify topics.
func (p *ThresholdPublisher) PublishModified(ctx context.Context, t device.Thresholds, timeout time.Duration) error {
	return p.publish(ctx, split("", t), mqtt.Topics{}.ThresholdModify, timeout)
}

// publish sends all three messages concurrently and waits for every one.
// Any failure is reported as a single ErrTransport carrying all causes.
func (p *ThresholdPublisher) publish(ctx context.Context, msgs []thresholdMessage, topic func(string) string, timeout time.Duration) error {
	if timeout <= 0 {
		return ErrInvalidTimeout
	}
	pubCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A plain group, not WithContext: one failure must not cancel the
	// other publishes. Wait reports the first failure; errs keeps them all.
	errs := make([]error, len(msgs))
	var g errgroup.Group
	for i, m := range msgs {
		g.Go(func() error {
			payload, err := json.Marshal(m.payload)
			if err == nil {
				err = p.pub.PublishContext(pubCtx, topic(m.attribute), payload, commandQoS, false)
			}
			p.metrics.ObserveThresholdPublish(outcomeFor(classify(err)))
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", m.attribute, err)
				return errs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}

	err := errors.Join(errs...)
	p.logger.Warn("threshold publish failed", "error", err)
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
