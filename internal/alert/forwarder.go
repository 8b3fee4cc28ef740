package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/farm-bridge/internal/account"
	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
)

const (
	consumerAlert = "alert"

	defaultForwardTimeout = 30 * time.Second
)

// Logger is the logging interface used by the Forwarder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Resolver maps a hardware id to its owning record.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (*device.Record, error)
}

// Accounts looks up the owner's contact details.
type Accounts interface {
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
}

// Forwarder turns warning messages into owner notifications.
type Forwarder struct {
	resolver Resolver
	accounts Accounts
	notifier Notifier
	metrics  *metrics.Bridge
	logger   Logger
	timeout  time.Duration
}

// NewForwarder creates a forwarder. accounts may be nil, in which case
// mail goes to the device owner's email without a name.
func NewForwarder(resolver Resolver, accounts Accounts, notifier Notifier) *Forwarder {
	return &Forwarder{
		resolver: resolver,
		accounts: accounts,
		notifier: notifier,
		logger:   noopLogger{},
		timeout:  defaultForwardTimeout,
	}
}

// SetLogger sets the logger for the forwarder.
func (f *Forwarder) SetLogger(logger Logger) { f.logger = logger }

// SetMetrics attaches bridge metrics.
func (f *Forwarder) SetMetrics(m *metrics.Bridge) { f.metrics = m }

// Topics returns the warning topics the forwarder handles.
func Topics() []string {
	topics := make([]string, 0, 3)
	for _, a := range telemetry.AllAttributes() {
		topics = append(topics, mqtt.Topics{}.Warning(string(a)))
	}
	return topics
}

// Handle has the bus handler signature. Failures are logged and never
// returned, so one bad warning cannot disturb other consumers.
func (f *Forwarder) Handle(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.Forward(ctx, topic, payload); err != nil {
		switch {
		case errors.Is(err, ErrMalformedAlert):
			f.logger.Warn("dropping malformed warning", "topic", topic, "error", err)
		case errors.Is(err, device.ErrDeviceNotFound):
			f.logger.Warn("dropping warning from unknown device", "topic", topic)
		case errors.Is(err, account.ErrAccountInactive):
			f.logger.Info("skipping warning for withdrawn account", "topic", topic)
		default:
			f.logger.Error("forwarding warning failed", "topic", topic, "error", err)
		}
	}
	return nil
}

// Forward validates one warning, resolves its owner and notifies them.
func (f *Forwarder) Forward(ctx context.Context, topic string, payload []byte) error {
	ev, err := ParseEvent(topic, payload)
	if err != nil {
		f.observe("", metrics.OutcomeMalformed)
		return err
	}

	rec, err := f.resolver.Resolve(ctx, ev.DeviceID)
	if err != nil {
		f.observe(ev.Attribute, unknownOr(err))
		return fmt.Errorf("resolving %s: %w", ev.DeviceID, err)
	}

	var acct *account.Account
	if f.accounts != nil {
		acct, err = f.accounts.GetByEmail(ctx, rec.OwnerEmail)
		switch {
		case err == nil && !acct.IsActive:
			f.observe(ev.Attribute, metrics.OutcomeUnknown)
			return account.ErrAccountInactive
		case errors.Is(err, account.ErrAccountNotFound):
			acct = nil
		case err != nil:
			f.observe(ev.Attribute, metrics.OutcomeError)
			return fmt.Errorf("looking up owner: %w", err)
		}
	}

	n := Render(ev, rec, acct)
	if err := f.notifier.Notify(ctx, n); err != nil {
		f.observe(ev.Attribute, metrics.OutcomeError)
		return fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}

	f.observe(ev.Attribute, metrics.OutcomeOK)
	f.logger.Info("warning forwarded", "device_id", ev.DeviceID, "attribute", ev.Attribute, "to", n.To)
	return nil
}

func (f *Forwarder) observe(attr telemetry.Attribute, outcome string) {
	f.metrics.ObserveMessage(consumerAlert, outcome)
	if attr != "" {
		f.metrics.ObserveAlert(string(attr), outcome)
	}
}

func unknownOr(err error) string {
	if errors.Is(err, device.ErrDeviceNotFound) {
		return metrics.OutcomeUnknown
	}
	return metrics.OutcomeError
}

// Render builds the notification for ev. acct may be nil.
func Render(ev Event, rec *device.Record, acct *account.Account) Notification {
	n := Notification{
		To:         rec.OwnerEmail,
		DeviceID:   rec.DeviceID,
		DeviceName: rec.DeviceName,
		Attribute:  string(ev.Attribute),
		Exceed:     ev.Exceed,
	}
	greeting := "Hello,"
	if acct != nil && acct.Name != "" {
		n.Name = acct.Name
		greeting = fmt.Sprintf("Hello %s,", acct.Name)
	}

	label := ev.Attribute.Label()
	n.Subject = fmt.Sprintf("[smartFarm] %s alert", label)
	n.Body = fmt.Sprintf("%s\n\n[smartFarm] %s on %s (%s, %s) %s.\n",
		greeting, label, rec.DeviceName, rec.PlantName, rec.DeviceID, ev.Exceed.Phrase())
	return n
}
