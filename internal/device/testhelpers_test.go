package device

import (
	"context"
	"testing"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
	"github.com/nerrad567/farm-bridge/migrations"
)

// setupTestDB creates a migrated in-memory database.
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

// testRecord creates a valid record for testing.
func testRecord(owner, deviceID, name string) *Record {
	return &Record{
		OwnerEmail: owner,
		DeviceID:   deviceID,
		DeviceName: name,
		PlantName:  "basil",
		Thresholds: Thresholds{
			MinTemperature:  18,
			MaxTemperature:  28,
			MinHumidity:     40,
			MaxHumidity:     70,
			MinSoilMoisture: 30,
			MaxSoilMoisture: 60,
		},
	}
}
