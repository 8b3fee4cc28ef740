package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestSQLiteStore_AppendAndRange(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db.DB)
	ctx := context.Background()

	base := time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC)
	for i, owner := range []string{"alice@example.com", "alice@example.com", "alice@example.com", "bob@example.com"} {
		s := &Sample{
			OwnerEmail:  owner,
			DeviceID:    "ABCDEF123456",
			DeviceName:  "greenhouse-1",
			PlantName:   "basil",
			Temperature: float64(20 + i),
			RecordedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.Append(ctx, s); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if s.ID == 0 {
			t.Error("Append() did not set ID")
		}
	}

	got, err := store.Range(ctx, "alice@example.com", "greenhouse-1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Range() returned %d samples, want 2", len(got))
	}
	if got[0].Temperature != 20 || got[1].Temperature != 21 {
		t.Errorf("Range() temperatures = %v, %v", got[0].Temperature, got[1].Temperature)
	}
	if !got[1].RecordedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("RecordedAt = %v", got[1].RecordedAt)
	}
}

func TestSQLiteStore_Exists(t *testing.T) {
	db := setupTestDB(t)
	store := NewSQLiteStore(db.DB)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "alice@example.com", "greenhouse-1")
	if err != nil || exists {
		t.Fatalf("Exists() on empty store = %v, %v", exists, err)
	}

	store.Append(ctx, &Sample{OwnerEmail: "alice@example.com", DeviceID: "ABCDEF123456", DeviceName: "greenhouse-1", PlantName: "basil"})

	if exists, _ := store.Exists(ctx, "alice@example.com", "greenhouse-1"); !exists {
		t.Error("Exists() = false after Append")
	}
	if exists, _ := store.Exists(ctx, "bob@example.com", "greenhouse-1"); exists {
		t.Error("Exists() = true for another owner")
	}
}
