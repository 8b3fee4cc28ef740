package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Attribute names one of the three readings.
type Attribute string

// Reading attributes, spelled as on the bus.
const (
	AttrTemperature  Attribute = "temperature"
	AttrHumidity     Attribute = "humidity"
	AttrSoilMoisture Attribute = "soilMoisture"
)

// AllAttributes returns the attributes in bus order.
func AllAttributes() []Attribute {
	return []Attribute{AttrTemperature, AttrHumidity, AttrSoilMoisture}
}

// ParseAttribute validates an attribute name.
func ParseAttribute(s string) (Attribute, error) {
	for _, a := range AllAttributes() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAttribute, s)
}

// Label is the human-readable name used in notifications.
func (a Attribute) Label() string {
	switch a {
	case AttrTemperature:
		return "Temperature"
	case AttrHumidity:
		return "Humidity"
	case AttrSoilMoisture:
		return "Soil moisture"
	default:
		return string(a)
	}
}

// seriesSuffix keeps the response keys existing dashboards read.
func (a Attribute) seriesSuffix() string {
	if a == AttrTemperature {
		return "Temperatures"
	}
	return string(a)
}

func (a Attribute) value(s Sample) float64 {
	switch a {
	case AttrHumidity:
		return s.Humidity
	case AttrSoilMoisture:
		return s.SoilMoisture
	default:
		return s.Temperature
	}
}

// Graph holds one attribute's history for charting: every value from
// yesterday's local calendar day and every value from the last seven days.
type Graph struct {
	Attribute Attribute
	DayAgo    []float64
	WeekAgo   []float64
}

// MarshalJSON renders the series as dayAgo<Attr> and weekAgo<Attr>.
func (g Graph) MarshalJSON() ([]byte, error) {
	suffix := g.Attribute.seriesSuffix()
	return json.Marshal(map[string][]float64{
		"dayAgo" + suffix:  nonNil(g.DayAgo),
		"weekAgo" + suffix: nonNil(g.WeekAgo),
	})
}

// Windows returns the week window [now-7d, now] and yesterday's local day.
func Windows(now time.Time) (weekFrom, dayFrom, dayTo time.Time) {
	y, m, d := now.Date()
	dayTo = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	dayFrom = time.Date(y, m, d-1, 0, 0, 0, 0, now.Location())
	return now.Add(-7 * 24 * time.Hour), dayFrom, dayTo
}

// BuildGraph projects samples from the week window onto one attribute.
func BuildGraph(samples []Sample, attr Attribute, now time.Time) Graph {
	_, dayFrom, dayTo := Windows(now)
	g := Graph{Attribute: attr}
	for _, s := range samples {
		v := attr.value(s)
		g.WeekAgo = append(g.WeekAgo, v)
		if !s.RecordedAt.Before(dayFrom) && !s.RecordedAt.After(dayTo) {
			g.DayAgo = append(g.DayAgo, v)
		}
	}
	return g
}

// LoadGraph reads the week window for a device and builds its graph.
// Returns ErrNoTelemetry when the device never reported.
func LoadGraph(ctx context.Context, store Store, ownerEmail, deviceName string, attr Attribute, now time.Time) (Graph, error) {
	exists, err := store.Exists(ctx, ownerEmail, deviceName)
	if err != nil {
		return Graph{}, err
	}
	if !exists {
		return Graph{}, ErrNoTelemetry
	}

	weekFrom, _, _ := Windows(now)
	samples, err := store.Range(ctx, ownerEmail, deviceName, weekFrom, now)
	if err != nil {
		return Graph{}, err
	}
	return BuildGraph(samples, attr, now), nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
