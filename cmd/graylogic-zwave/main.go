// Gray Logic Z-Wave - schedule-driven actuator control for a Z-Wave network.
//
// The controller listens to an external Z-Wave gateway over MQTT, keeps a
// registry of the actuators each behavioural module commands, and switches
// them on and off at the times configured per module. A small HTTP API
// reloads module configuration, forces actuators on or off and manages
// inclusion/exclusion.
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
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel is called explicitly above
	}
}
