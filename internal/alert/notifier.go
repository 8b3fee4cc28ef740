package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/config"
)

// smtpTimeout bounds each network operation of one delivery.
const smtpTimeout = 15 * time.Second

// Notification is a rendered alert addressed to one owner.
type Notification struct {
	To         string
	Name       string
	Subject    string
	Body       string
	DeviceID   string
	DeviceName string
	Attribute  string
	Exceed     Exceed
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n.
func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.Info("alert notification",
		"to", n.To,
		"subject", n.Subject,
		"device_id", n.DeviceID,
		"attribute", n.Attribute,
		"exceed", string(n.Exceed),
	)
	return nil
}

// sendFunc delivers one rendered message.
type sendFunc func(ctx context.Context, m *mail.Msg) error

// SMTPNotifier sends notifications as plain-text mail.
type SMTPNotifier struct {
	from string
	send sendFunc
}

// NewSMTPNotifier creates a notifier from config. Authentication is used
// only when a username is configured. STARTTLS is used when the server
// offers it.
func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(smtpTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return &SMTPNotifier{
		from: cfg.From,
		send: func(ctx context.Context, m *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, m)
		},
	}, nil
}

// Notify sends n and returns once the mail is accepted or ctx ends.
func (s *SMTPNotifier) Notify(ctx context.Context, n Notification) error {
	m, err := s.message(n)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.send(ctx, m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending mail to %s: %w", n.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending mail to %s: %w", n.To, ctx.Err())
	}
}

func (s *SMTPNotifier) message(n Notification) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	var err error
	if n.Name != "" {
		err = m.AddToFormat(n.Name, n.To)
	} else {
		err = m.To(n.To)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", n.To, err)
	}
	m.Subject(n.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, n.Body)
	return m, nil
}
