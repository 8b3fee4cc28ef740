// Package telemetry validates device readings arriving on the bus and
// keeps their history.
//
// Every inbound reading passes through Validate before any consumer sees
// it; the storage path (Ingester) and the real-time path share it so both
// reject the same payloads.
//
// # Flow
//
//	dt/farm/house/graph    -> Validate -> Resolve owner -> Store.Append -> mirror, live stream
//	dt/farm/house/realtime -> Validate -> live stream (correlation waits are registered elsewhere)
//
// A malformed payload or an unknown device drops that one message with a
// warning. It never affects other messages or other consumers.
package telemetry
