package control

import (
	"encoding/json"
	"fmt"
	"math"
)

// Capability names an actuator class. The value is the command topic segment.
type Capability string

const (
	CapabilityFan        Capability = "dcpan"
	CapabilityHeater     Capability = "heater"
	CapabilityHumidifier Capability = "humidifier"
	CapabilityFertilizer Capability = "fertilizer"
	CapabilityPump       Capability = "pump"
	CapabilityLighting   Capability = "lighting"
)

// Payload keys carried next to deviceId in a command.
const (
	KeyControl  = "control"
	KeyNutrient = "nutrient"
	KeyWater    = "water"
)

// AllCapabilities lists every actuator in topic order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityFan, CapabilityHeater, CapabilityHumidifier,
		CapabilityFertilizer, CapabilityPump, CapabilityLighting,
	}
}

// ParseCapability accepts a topic segment.
func ParseCapability(s string) (Capability, error) {
	for _, c := range AllCapabilities() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCapability, s)
}

// ForEndpoint maps an HTTP control endpoint name to its capability. The
// endpoints mirror the topic segments except "nutrient", which doses the
// fertilizer.
func ForEndpoint(name string) (Capability, error) {
	if name == KeyNutrient {
		return CapabilityFertilizer, nil
	}
	return ParseCapability(name)
}

// PayloadKey returns the JSON key the device reads the value from.
func (c Capability) PayloadKey() string {
	switch c {
	case CapabilityFertilizer:
		return KeyNutrient
	case CapabilityPump:
		return KeyWater
	default:
		return KeyControl
	}
}

// Switched reports whether the actuator takes an on/off value rather
// than a dosed quantity.
func (c Capability) Switched() bool {
	return c.PayloadKey() == KeyControl
}

// NormalizeValue checks v against the capability's value type and returns
// it in the form published on the bus: bool for switched actuators, a
// finite float64 for dosed ones.
func (c Capability) NormalizeValue(v any) (any, error) {
	if c.Switched() {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, c.PayloadKey())
		}
		return b, nil
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidValue, c.PayloadKey())
		}
		f = parsed
	default:
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidValue, c.PayloadKey())
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s must be finite", ErrInvalidValue, c.PayloadKey())
	}
	return f, nil
}
