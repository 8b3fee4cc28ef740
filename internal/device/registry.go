package device

import (
	"context"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry wraps a Repository with validation and an in-memory cache of
// device id to owning record, used on the hot path of every inbound bus
// message.
//
// All public methods are thread-safe.
type Registry struct {
	repo Repository

	cacheMu sync.RWMutex
	cache   map[string]*Record // by device id
	// gen increments on every invalidation so a lookup that raced with a
	// write does not re-insert a stale record.
	gen uint64

	logger Logger
}

// NewRegistry creates a new device registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Record),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Resolve maps a hardware id seen on the bus to its owning record.
//
// When more than one owner registered the same id, the earliest
// registration wins. Returns ErrDeviceNotFound for unregistered ids.
// The returned record is a copy.
func (r *Registry) Resolve(ctx context.Context, deviceID string) (*Record, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[deviceID]
	gen := r.gen
	r.cacheMu.RUnlock()

	if ok {
		return cached.Copy(), nil
	}

	rec, err := r.repo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	if r.gen == gen {
		r.cache[deviceID] = rec.Copy()
	}
	r.cacheMu.Unlock()

	return rec, nil
}

// GetDevice retrieves one of the owner's records by name.
func (r *Registry) GetDevice(ctx context.Context, ownerEmail, deviceName string) (*Record, error) {
	return r.repo.GetByName(ctx, ownerEmail, deviceName)
}

// ListDevices retrieves all of the owner's records.
func (r *Registry) ListDevices(ctx context.Context, ownerEmail string) ([]Record, error) {
	return r.repo.ListByOwner(ctx, ownerEmail)
}

// CreateDevice validates, normalizes and stores a new record.
func (r *Registry) CreateDevice(ctx context.Context, rec *Record) error {
	if err := ValidateRecord(rec); err != nil {
		return err
	}
	rec.DeviceID = NormalizeDeviceID(rec.DeviceID)

	if err := r.repo.Create(ctx, rec); err != nil {
		return err
	}

	// A new registration never displaces an earlier one, but a cached
	// miss path may be mid-flight for this id.
	r.invalidate(rec.DeviceID)

	r.logger.Info("device created", "owner", rec.OwnerEmail, "device_id", rec.DeviceID, "name", rec.DeviceName)
	return nil
}

// UpdateDevice replaces the plant name and thresholds of an existing record.
// DeviceID is taken from the stored record; callers cannot change it.
func (r *Registry) UpdateDevice(ctx context.Context, rec *Record) error {
	existing, err := r.repo.GetByName(ctx, rec.OwnerEmail, rec.DeviceName)
	if err != nil {
		return err
	}
	rec.DeviceID = existing.DeviceID
	rec.CreatedAt = existing.CreatedAt

	if err := ValidatePlantName(rec.PlantName); err != nil {
		return err
	}
	if err := ValidateThresholds(rec.Thresholds); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, rec); err != nil {
		return err
	}
	r.invalidate(rec.DeviceID)

	r.logger.Info("device updated", "owner", rec.OwnerEmail, "device_id", rec.DeviceID, "name", rec.DeviceName)
	return nil
}

// DeleteDevice removes a record together with its telemetry history.
func (r *Registry) DeleteDevice(ctx context.Context, ownerEmail, deviceName string) error {
	deleted, err := r.repo.Delete(ctx, ownerEmail, deviceName)
	if err != nil {
		return err
	}
	r.invalidate(deleted.DeviceID)

	r.logger.Info("device deleted", "owner", ownerEmail, "device_id", deleted.DeviceID, "name", deviceName)
	return nil
}

func (r *Registry) invalidate(deviceID string) {
	r.cacheMu.Lock()
	delete(r.cache, deviceID)
	r.gen++
	r.cacheMu.Unlock()
}
