package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Repository defines the interface for device record persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByName retrieves one of the owner's records by device name.
	// Returns ErrDeviceNotFound if the owner has no such device.
	GetByName(ctx context.Context, ownerEmail, deviceName string) (*Record, error)

	// GetByDeviceID retrieves the earliest created record for a hardware id,
	// whoever owns it. Returns ErrDeviceNotFound if nobody registered it.
	GetByDeviceID(ctx context.Context, deviceID string) (*Record, error)

	// ListByOwner retrieves all of the owner's records ordered by name.
	ListByOwner(ctx context.Context, ownerEmail string) ([]Record, error)

	// Create inserts a new record.
	// Returns ErrDeviceExists or ErrDeviceNameTaken on owner-scoped duplicates.
	Create(ctx context.Context, r *Record) error

	// Update replaces the plant name and thresholds of an existing record.
	// Returns ErrDeviceNotFound if the record does not exist.
	Update(ctx context.Context, r *Record) error

	// Delete removes a record and its telemetry history atomically.
	// Returns ErrDeviceNotFound if the record does not exist.
	Delete(ctx context.Context, ownerEmail, deviceName string) (*Record, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open, migrated SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
	SELECT owner_email, device_id, device_name, plant_name,
		min_temperature, max_temperature, min_humidity, max_humidity,
		min_soil_moisture, max_soil_moisture, created_at, updated_at
	FROM devices`

// GetByName retrieves one of the owner's records by device name.
func (r *SQLiteRepository) GetByName(ctx context.Context, ownerEmail, deviceName string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE owner_email = ? AND device_name = ?`, ownerEmail, deviceName)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by name: %w", err)
	}
	return rec, nil
}

// GetByDeviceID retrieves the earliest created record for a hardware id.
func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE device_id = ?
		ORDER BY created_at, rowid
		LIMIT 1`, deviceID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return rec, nil
}

// ListByOwner retrieves all of the owner's records.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerEmail string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		WHERE owner_email = ?
		ORDER BY device_name`, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return records, nil
}

// Create inserts a new record. CreatedAt is kept when already set.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (
			owner_email, device_id, device_name, plant_name,
			min_temperature, max_temperature, min_humidity, max_humidity,
			min_soil_moisture, max_soil_moisture, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerEmail,
		rec.DeviceID,
		rec.DeviceName,
		rec.PlantName,
		rec.MinTemperature,
		rec.MaxTemperature,
		rec.MinHumidity,
		rec.MaxHumidity,
		rec.MinSoilMoisture,
		rec.MaxSoilMoisture,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "device_name") {
				return ErrDeviceNameTaken
			}
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update replaces the plant name and thresholds of an existing record.
func (r *SQLiteRepository) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			plant_name = ?,
			min_temperature = ?, max_temperature = ?,
			min_humidity = ?, max_humidity = ?,
			min_soil_moisture = ?, max_soil_moisture = ?,
			updated_at = ?
		WHERE owner_email = ? AND device_name = ?`,
		rec.PlantName,
		rec.MinTemperature, rec.MaxTemperature,
		rec.MinHumidity, rec.MaxHumidity,
		rec.MinSoilMoisture, rec.MaxSoilMoisture,
		rec.UpdatedAt.Format(timeLayout),
		rec.OwnerEmail, rec.DeviceName,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireOneRow(result)
}

// Delete removes a record and every telemetry sample stored under its
// name in one transaction, returning the deleted record.
func (r *SQLiteRepository) Delete(ctx context.Context, ownerEmail, deviceName string) (*Record, error) {
	var deleted *Record
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, selectColumns+`
			WHERE owner_email = ? AND device_name = ?`, ownerEmail, deviceName)
		rec, err := scanRecord(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDeviceNotFound
			}
			return fmt.Errorf("querying device: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM devices WHERE owner_email = ? AND device_name = ?",
			ownerEmail, deviceName); err != nil {
			return fmt.Errorf("deleting device: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM telemetry_samples WHERE owner_email = ? AND device_name = ?",
			ownerEmail, deviceName); err != nil {
			return fmt.Errorf("deleting telemetry: %w", err)
		}

		deleted = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&rec.OwnerEmail,
		&rec.DeviceID,
		&rec.DeviceName,
		&rec.PlantName,
		&rec.MinTemperature,
		&rec.MaxTemperature,
		&rec.MinHumidity,
		&rec.MaxHumidity,
		&rec.MinSoilMoisture,
		&rec.MaxSoilMoisture,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &rec, nil
}

func requireOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
