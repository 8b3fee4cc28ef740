package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Sample is one stored reading, attributed to the owning record at the
// time it arrived. Samples are immutable once stored.
type Sample struct {
	ID           int64     `json:"id"`
	OwnerEmail   string    `json:"email"`
	DeviceID     string    `json:"deviceId"`
	DeviceName   string    `json:"deviceName"`
	PlantName    string    `json:"plantName"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	SoilMoisture float64   `json:"soilMoisture"`
	RecordedAt   time.Time `json:"time"`
}

// Store persists samples. History is append-only; samples are removed
// only together with their device record.
type Store interface {
	// Append stores a sample and sets its ID.
	Append(ctx context.Context, s *Sample) error

	// Range returns the owner's samples for a device recorded in
	// [from, to], oldest first.
	Range(ctx context.Context, ownerEmail, deviceName string, from, to time.Time) ([]Sample, error)

	// Exists reports whether any sample was ever stored for the device.
	Exists(ctx context.Context, ownerEmail, deviceName string) (bool, error)
}

// SQLiteStore implements Store on the telemetry_samples table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open, migrated connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append stores a sample. A zero RecordedAt is set to now.
func (s *SQLiteStore) Append(ctx context.Context, sample *Sample) error {
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO telemetry_samples (
			owner_email, device_id, device_name, plant_name,
			temperature, humidity, soil_moisture, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.OwnerEmail,
		sample.DeviceID,
		sample.DeviceName,
		sample.PlantName,
		sample.Temperature,
		sample.Humidity,
		sample.SoilMoisture,
		sample.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading sample id: %w", err)
	}
	sample.ID = id
	return nil
}

// Range returns samples recorded in [from, to], oldest first.
func (s *SQLiteStore) Range(ctx context.Context, ownerEmail, deviceName string, from, to time.Time) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_email, device_id, device_name, plant_name,
			temperature, humidity, soil_moisture, recorded_at
		FROM telemetry_samples
		WHERE owner_email = ? AND device_name = ?
			AND recorded_at BETWEEN ? AND ?
		ORDER BY recorded_at, id`,
		ownerEmail, deviceName, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			sample     Sample
			recordedAt int64
		)
		if err := rows.Scan(
			&sample.ID,
			&sample.OwnerEmail,
			&sample.DeviceID,
			&sample.DeviceName,
			&sample.PlantName,
			&sample.Temperature,
			&sample.Humidity,
			&sample.SoilMoisture,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		sample.RecordedAt = time.UnixMilli(recordedAt)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating samples: %w", err)
	}
	return samples, nil
}

// Exists reports whether any sample was stored for the device.
func (s *SQLiteStore) Exists(ctx context.Context, ownerEmail, deviceName string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM telemetry_samples
			WHERE owner_email = ? AND device_name = ?
		)`, ownerEmail, deviceName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking samples: %w", err)
	}
	return exists == 1, nil
}
