package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/farm-bridge/internal/account"
	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/config"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("default = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configEnv, "/etc/farmbridge/config.yaml")
	if got := getConfigPath(""); got != "/etc/farmbridge/config.yaml" {
		t.Errorf("env = %q", got)
	}
	if got := getConfigPath("custom.yaml"); got != "custom.yaml" {
		t.Errorf("flag = %q, want the flag to win", got)
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--config", "/nonexistent/path/config.yaml"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("serve should fail with an invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want a config loading error", err)
	}
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "farmbridge.db")
	configPath := filepath.Join(dir, "config.yaml")
	content := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5
security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
logging:
  level: error
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	out := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate", "--config", configPath})
	cmd.SetOut(out)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"migrate", "--status", "--config", configPath})
	cmd.SetOut(out)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("migrate --status: %v", err)
	}
	if !strings.Contains(out.String(), "applied") || strings.Contains(out.String(), "pending") {
		t.Errorf("status output = %q, want only applied migrations", out.String())
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"migrate", "--down", "--config", configPath})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("migrate --down: %v", err)
	}

	out.Reset()
	cmd = newRootCmd()
	cmd.SetArgs([]string{"migrate", "--status", "--config", configPath})
	cmd.SetOut(out)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("migrate --status: %v", err)
	}
	if !strings.Contains(out.String(), "pending") {
		t.Errorf("status output after --down = %q, want a pending migration", out.String())
	}

	cmd = newRootCmd()
	cmd.SetArgs([]string{"migrate", "--down", "--status", "--config", configPath})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("migrate --down --status: expected an error")
	}
}

type subscriptionSet map[string]bool

func (s subscriptionSet) HasSubscription(topic string) bool { return s[topic] }

func TestRequireSubscriptions(t *testing.T) {
	topics := inboundTopics()
	all := subscriptionSet{}
	for _, topic := range topics {
		all[topic] = true
	}
	if err := requireSubscriptions(all, topics); err != nil {
		t.Errorf("requireSubscriptions() error = %v", err)
	}

	realtime := mqtt.Topics{}.Realtime()
	delete(all, realtime)
	err := requireSubscriptions(all, topics)
	if err == nil || !strings.Contains(err.Error(), realtime) {
		t.Errorf("requireSubscriptions() error = %v, want %s named", err, realtime)
	}
}

func TestVersion(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetArgs([]string{"version"})
	cmd.SetOut(out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "farmbridge "+version) {
		t.Errorf("output = %q", out.String())
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestSimulator_Run(t *testing.T) {
	pub := &recordingPublisher{}
	s := &simulator{
		pub:     pub,
		devices: []*simDevice{newSimDevice("abcdef123456"), newSimDevice(randomDeviceID())},
		qos:     1,
		log:     logging.Discard(),
	}

	if err := s.run(context.Background(), time.Millisecond, 3); err != nil {
		t.Fatalf("run: %v", err)
	}

	// 3 rounds x 2 devices x 2 topics
	if len(pub.topics) != 12 {
		t.Fatalf("publishes = %d, want 12", len(pub.topics))
	}
	topics := mqtt.Topics{}
	for i, payload := range pub.payloads {
		if pub.topics[i] != topics.Graph() && pub.topics[i] != topics.Realtime() {
			t.Errorf("topic = %q", pub.topics[i])
		}
		reading, err := telemetry.Validate(payload)
		if err != nil {
			t.Fatalf("simulated payload %s rejected: %v", payload, err)
		}
		if err := device.ValidateDeviceID(reading.DeviceID); err != nil {
			t.Errorf("device id %q: %v", reading.DeviceID, err)
		}
	}
	if got, _ := telemetry.Validate(pub.payloads[0]); got.DeviceID != "ABCDEF123456" {
		t.Errorf("device id = %q, want normalized", got.DeviceID)
	}
}

func TestSimulator_StopsOnCancel(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := &simulator{pub: pub, devices: []*simDevice{newSimDevice(randomDeviceID())}, log: logging.Discard()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.run(ctx, time.Second, 0); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestDrift(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := drift(99.9, 5, 0, 100)
		if v < 0 || v > 100 {
			t.Fatalf("drift = %v, outside [0, 100]", v)
		}
	}
}

func TestRegisterSimDevices(t *testing.T) {
	dbCfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "sim.db"), WALMode: true, BusyTimeout: 5}
	sims := []*simDevice{newSimDevice("AAAAAA000001"), newSimDevice("AAAAAA000002")}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := registerSimDevices(ctx, dbCfg, "Grower@Farm.test", sims, logging.Discard()); err != nil {
			t.Fatalf("registerSimDevices run %d: %v", i+1, err)
		}
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	acct, err := account.NewSQLiteRepository(db.DB).GetByEmail(ctx, "grower@farm.test")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if !acct.IsActive {
		t.Error("seeded account is not active")
	}

	records, err := device.NewSQLiteRepository(db.DB).ListByOwner(ctx, "grower@farm.test")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}
