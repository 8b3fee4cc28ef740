package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/farm-bridge/internal/telemetry"
)

var (
	// ErrMalformedAlert is returned when a warning payload cannot be used.
	ErrMalformedAlert = errors.New("alert: malformed warning")

	// ErrNotifyFailed wraps notifier failures.
	ErrNotifyFailed = errors.New("alert: notification failed")
)

// Exceed says which side of the range a reading left.
type Exceed string

const (
	ExceedAbove Exceed = "above"
	ExceedBelow Exceed = "below"
)

// Phrase is the wording used in notification bodies.
func (e Exceed) Phrase() string {
	if e == ExceedAbove {
		return "exceeded the maximum"
	}
	return "is below the minimum"
}

// parseExceed accepts "above"/"below" and the older firmware's 1/0,
// as a number or a string.
func parseExceed(v any) (Exceed, bool) {
	switch x := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "above", "1":
			return ExceedAbove, true
		case "below", "0":
			return ExceedBelow, true
		}
	case json.Number:
		switch x.String() {
		case "1":
			return ExceedAbove, true
		case "0":
			return ExceedBelow, true
		}
	}
	return "", false
}

// Event is one validated warning.
type Event struct {
	DeviceID  string
	Attribute telemetry.Attribute
	Exceed    Exceed
}

// ParseEvent validates a warning payload. When the payload omits the
// attribute, the one named by the warning topic is used.
func ParseEvent(topic string, payload []byte) (Event, error) {
	raw, err := telemetry.DecodeObject(payload)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedAlert, err)
	}

	id, ok := raw["deviceId"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return Event{}, fmt.Errorf("%w: deviceId must be a non-empty string", ErrMalformedAlert)
	}

	attrName, _ := raw["attribute"].(string)
	if attrName == "" {
		attrName = topicAttribute(topic)
	}
	attr, err := telemetry.ParseAttribute(attrName)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformedAlert, err)
	}

	exceed, ok := parseExceed(raw["exceed"])
	if !ok {
		return Event{}, fmt.Errorf("%w: exceed must be above or below", ErrMalformedAlert)
	}

	return Event{
		DeviceID:  telemetry.NormalizeDeviceID(id),
		Attribute: attr,
		Exceed:    exceed,
	}, nil
}

// topicAttribute extracts <attribute> from dt/farm/house/<attribute>/warning.
func topicAttribute(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "warning" {
		return ""
	}
	return parts[len(parts)-2]
}
