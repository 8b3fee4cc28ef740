package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/farm-bridge/migrations"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// registerDevice stores a device record and returns the registry over it.
func registerDevice(t *testing.T, db *database.DB, owner, deviceID, name string) *device.Registry {
	t.Helper()
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	err := registry.CreateDevice(context.Background(), &device.Record{
		OwnerEmail: owner,
		DeviceID:   deviceID,
		DeviceName: name,
		PlantName:  "basil",
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	return registry
}

type recordingMirror struct {
	mu       sync.Mutex
	readings []influxdb.Reading
}

func (m *recordingMirror) WriteReading(r influxdb.Reading) {
	m.mu.Lock()
	m.readings = append(m.readings, r)
	m.mu.Unlock()
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []LiveEvent
}

func (b *recordingBroadcaster) Broadcast(ev LiveEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
