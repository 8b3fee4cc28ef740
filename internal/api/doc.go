// Package api implements the grower-facing HTTP API and live telemetry
// WebSocket for the farm bridge.
//
// This package provides:
//   - Device record endpoints (register, update thresholds, list, delete)
//   - Actuator control endpoints that publish commands on the bus
//   - A realtime endpoint that waits for the caller's next live reading
//   - Telemetry graphs built from stored samples
//   - A WebSocket stream of the caller's own readings
//   - Health and Prometheus metrics endpoints
//
// # Responses
//
// Every JSON body uses the envelope the web client expects:
//
//	{"err": null, "data": {...}}
//	{"err": {"status": 404, "code": "not_found", "message": "device not found"}, "data": null}
//
// # Security
//
// All /api routes except /api/health require the session JWT issued by the
// account service, in the session cookie or an Authorization: Bearer
// header. Every query is scoped to the email in the token.
package api
