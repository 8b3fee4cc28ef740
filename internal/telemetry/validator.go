package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Reading is a validated device reading, normalized from the bus payload.
type Reading struct {
	DeviceID     string  `json:"deviceId"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	SoilMoisture float64 `json:"soilMoisture"`
}

// DecodeObject parses data as exactly one JSON object. Numbers are kept
// as json.Number and anything after the object is an error.
func DecodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not an object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after object")
	}
	return obj, nil
}

// Validate parses a bus payload into a Reading.
//
// The payload must be a JSON object with a non-empty string deviceId and
// temperature, humidity and soilMoisture given as finite numbers or
// numeric strings. Anything else fails with ErrMalformedPayload. The topic
// plays no part: graph and realtime payloads are validated identically.
func Validate(payload []byte) (Reading, error) {
	raw, err := DecodeObject(payload)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	id, ok := raw["deviceId"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return Reading{}, fmt.Errorf("%w: deviceId must be a non-empty string", ErrMalformedPayload)
	}

	r := Reading{DeviceID: NormalizeDeviceID(id)}
	fields := []struct {
		key string
		dst *float64
	}{
		{"temperature", &r.Temperature},
		{"humidity", &r.Humidity},
		{"soilMoisture", &r.SoilMoisture},
	}
	for _, f := range fields {
		v, ok := ParseNumber(raw[f.key])
		if !ok {
			return Reading{}, fmt.Errorf("%w: %s must be a finite number", ErrMalformedPayload, f.key)
		}
		*f.dst = v
	}
	return r, nil
}

// NormalizeDeviceID matches the stored form of hardware ids.
func NormalizeDeviceID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ParseNumber accepts a decoded JSON number or numeric string and reports
// whether it holds a finite float.
func ParseNumber(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case json.Number:
		f, err = n.Float64()
	case float64:
		f = n
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
