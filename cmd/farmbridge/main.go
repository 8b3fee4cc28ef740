// farm-bridge connects the smart-farm HTTP API to the farm message bus.
//
// Growers' browsers talk HTTP; greenhouse devices talk MQTT. The bridge
// turns control requests into bus commands, waits for live readings on
// behalf of HTTP callers, stores periodic telemetry and mails the owner
// when a device reports a threshold violation.
//
// Subcommands:
//   - serve:    run the bridge
//   - migrate:  apply database migrations and exit
//   - simulate: publish synthetic device readings for local testing
//   - version:  print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
