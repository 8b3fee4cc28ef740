package control

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
)

type published struct {
	topic   string
	payload map[string]any
	qos     byte
}

// fakePublisher records publishes. fail maps a topic to the error it returns;
// block makes every publish wait for ctx.
type fakePublisher struct {
	mu    sync.Mutex
	sent  []published
	fail  map[string]error
	block bool
}

func (f *fakePublisher) PublishContext(ctx context.Context, topic string, payload []byte, qos byte, _ bool) error {
	if f.block {
		<-ctx.Done()
		return errors.Join(mqtt.ErrTimeout, ctx.Err())
	}
	if err := f.fail[topic]; err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, published{topic, decoded, qos})
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) byTopic() map[string]published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]published, len(f.sent))
	for _, p := range f.sent {
		out[p.topic] = p
	}
	return out
}

func TestForEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		want    Capability
		wantKey string
		wantErr bool
	}{
		{"dcpan", CapabilityFan, KeyControl, false},
		{"heater", CapabilityHeater, KeyControl, false},
		{"humidifier", CapabilityHumidifier, KeyControl, false},
		{"lighting", CapabilityLighting, KeyControl, false},
		{"nutrient", CapabilityFertilizer, KeyNutrient, false},
		{"fertilizer", CapabilityFertilizer, KeyNutrient, false},
		{"pump", CapabilityPump, KeyWater, false},
		{"sprinkler", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ForEndpoint(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForEndpoint(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCapability) {
					t.Errorf("error = %v, want ErrInvalidCapability", err)
				}
				return
			}
			if got != tt.want || got.PayloadKey() != tt.wantKey {
				t.Errorf("ForEndpoint(%q) = %s/%s, want %s/%s", tt.name, got, got.PayloadKey(), tt.want, tt.wantKey)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name    string
		cap     Capability
		value   any
		want    any
		wantErr bool
	}{
		{"switch on", CapabilityHeater, true, true, false},
		{"switch off", CapabilityLighting, false, false, false},
		{"switch given number", CapabilityFan, 1.0, nil, true},
		{"switch given string", CapabilityFan, "true", nil, true},
		{"dose float", CapabilityPump, 3.5, 3.5, false},
		{"dose int", CapabilityFertilizer, 2, 2.0, false},
		{"dose given bool", CapabilityPump, true, nil, true},
		{"dose given string", CapabilityPump, "3", nil, true},
		{"dose json number", CapabilityPump, json.Number("2.5"), 2.5, false},
		{"dose nil", CapabilityFertilizer, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cap.NormalizeValue(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeValue(%v) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidValue) {
				t.Errorf("error = %v, want ErrInvalidValue", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeValue(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestSend_Published(t *testing.T) {
	pub := &fakePublisher{}
	d := NewDispatcher(pub)

	err := d.Send(context.Background(), Command{DeviceID: "ABCDEF123456", Capability: CapabilityPump, Value: 3.0}, time.Second)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got, ok := pub.byTopic()["cmd/farm/house/pump/control/req"]
	if !ok {
		t.Fatalf("nothing published on the pump topic: %v", pub.sent)
	}
	if got.qos != 1 {
		t.Errorf("qos = %d, want 1", got.qos)
	}
	if got.payload["deviceId"] != "ABCDEF123456" || got.payload["water"] != 3.0 {
		t.Errorf("payload = %v", got.payload)
	}
}

func TestSend_RejectsBeforePublishing(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		timeout time.Duration
		wantErr error
	}{
		{"no device", Command{Capability: CapabilityHeater, Value: true}, time.Second, ErrInvalidCommand},
		{"bad capability", Command{DeviceID: "X", Capability: "sprinkler", Value: true}, time.Second, ErrInvalidCapability},
		{"bad value", Command{DeviceID: "X", Capability: CapabilityHeater, Value: 1.0}, time.Second, ErrInvalidValue},
		{"zero timeout", Command{DeviceID: "X", Capability: CapabilityHeater, Value: true}, 0, ErrInvalidTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			err := NewDispatcher(pub).Send(context.Background(), tt.cmd, tt.timeout)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
			if len(pub.sent) != 0 {
				t.Errorf("published %d messages, want 0", len(pub.sent))
			}
		})
	}
}

func TestSend_Transport(t *testing.T) {
	for _, cause := range []error{mqtt.ErrNotConnected, mqtt.ErrPublishFailed} {
		pub := &fakePublisher{fail: map[string]error{"cmd/farm/house/heater/control/req": cause}}
		err := NewDispatcher(pub).Send(context.Background(), Command{DeviceID: "X", Capability: CapabilityHeater, Value: true}, time.Second)
		if !errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout) {
			t.Errorf("Send() with %v error = %v, want only ErrTransport", cause, err)
		}
	}
}

func TestSend_AckNeverArrives(t *testing.T) {
	pub := &fakePublisher{block: true}
	start := time.Now()

	err := NewDispatcher(pub).Send(context.Background(), Command{DeviceID: "X", Capability: CapabilityHeater, Value: true}, 50*time.Millisecond)

	if !errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		t.Errorf("Send() error = %v, want only ErrTimeout", err)
	}
	if took := time.Since(start); took > time.Second {
		t.Errorf("Send() took %v, want about 50ms", took)
	}
}

func TestPublishInitial(t *testing.T) {
	pub := &fakePublisher{}
	p := NewThresholdPublisher(pub)
	th := device.Thresholds{
		MinTemperature: 10, MaxTemperature: 30,
		MinHumidity: 40, MaxHumidity: 80,
		MinSoilMoisture: 20, MaxSoilMoisture: 60,
	}

	if err := p.PublishInitial(context.Background(), "alice@example.com", th, time.Second); err != nil {
		t.Fatalf("PublishInitial() error = %v", err)
	}

	got := pub.byTopic()
	want := map[string]map[string]any{
		"farm/house/temperature":  {"userEmail": "alice@example.com", "minTemperature": 10.0, "maxTemperature": 30.0},
		"farm/house/humidity":     {"userEmail": "alice@example.com", "minHumidity": 40.0, "maxHumidity": 80.0},
		"farm/house/soilMoisture": {"userEmail": "alice@example.com", "minSoilMoisture": 20.0, "maxSoilMoisture": 60.0},
	}
	if len(got) != len(want) {
		t.Fatalf("published on %d topics, want %d", len(got), len(want))
	}
	for topic, fields := range want {
		p, ok := got[topic]
		if !ok {
			t.Errorf("no publish on %s", topic)
			continue
		}
		if len(p.payload) != len(fields) {
			t.Errorf("%s payload = %v, want %v", topic, p.payload, fields)
		}
		for k, v := range fields {
			if p.payload[k] != v {
				t.Errorf("%s[%s] = %v, want %v", topic, k, p.payload[k], v)
			}
		}
	}
}

func TestPublishModified_NoOwner(t *testing.T) {
	pub := &fakePublisher{}
	if err := NewThresholdPublisher(pub).PublishModified(context.Background(), device.Thresholds{MaxHumidity: 70}, time.Second); err != nil {
		t.Fatalf("PublishModified() error = %v", err)
	}

	got := pub.byTopic()
	for _, topic := range []string{"farm/house/temperature/modify", "farm/house/humidity/modify", "farm/house/soilMoisture/modify"} {
		p, ok := got[topic]
		if !ok {
			t.Errorf("no publish on %s", topic)
			continue
		}
		if _, has := p.payload["userEmail"]; has {
			t.Errorf("%s carries userEmail", topic)
		}
	}
	if got["farm/house/humidity/modify"].payload["maxHumidity"] != 70.0 {
		t.Errorf("humidity payload = %v", got["farm/house/humidity/modify"].payload)
	}
}

func TestPublishThresholds_AggregatesFailures(t *testing.T) {
	pub := &fakePublisher{fail: map[string]error{
		"farm/house/humidity":     mqtt.ErrPublishFailed,
		"farm/house/soilMoisture": mqtt.ErrNotConnected,
	}}

	err := NewThresholdPublisher(pub).PublishInitial(context.Background(), "alice@example.com", device.Thresholds{}, time.Second)

	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, mqtt.ErrPublishFailed) || !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("error = %v, want both causes", err)
	}
	if _, ok := pub.byTopic()["farm/house/temperature"]; !ok {
		t.Error("healthy topic was not published")
	}
}
