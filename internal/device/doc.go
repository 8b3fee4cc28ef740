// Package device keeps growers' device registrations and resolves the
// hardware ids seen on the bus back to their owners.
//
// # Architecture
//
//	Registry (registry.go)       Repository (repository.go)    Validation (validation.go)
//	  - create/update/delete  ->   - SQLite queries              - device id, names
//	  - id -> owner cache          - delete with telemetry tx    - finite thresholds
//
// Every inbound telemetry or alert message carries only a device id, so
// Registry.Resolve sits on the hot path of the bus. It caches positive
// lookups and drops an id from the cache whenever a record with that id
// is written.
//
// # Ownership
//
// A device id is unique per owner, not globally. When two owners register
// the same id, messages from that id resolve to the earliest registration.
//
// # Usage
//
//	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
//
//	rec, err := registry.Resolve(ctx, "ABCDEF123456")
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // drop the message
//	}
package device
