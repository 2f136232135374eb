// Package automation is the scheduling core of the Z-Wave controller.
//
// It turns time-of-day ticks into on/off commands for the actuators each
// behavioural module owns:
//
//	Ticker ──Tick──▶ Router inbox ──▶ Evaluate ──▶ Dispatcher ──▶ device.Registry
//	Gateway events ─▶ Router inbox ──▶ registry sync / value handlers
//
// # Key Types
//
//   - Evaluate: Pure matcher from a tick string and a module configuration
//     to transition commands
//   - Dispatcher: Commands every actuator of a module; failures are per
//     actuator and results arrive asynchronously at a ResultSink
//   - Router: Single-goroutine event loop with a bounded FIFO inbox
//   - Ticker: Wall-clock aligned tick source
//   - SQLiteRepository: Dispatch log in the dispatch_log table
//
// # Thread Safety
//
// The Router handles one message at a time; its public methods may be
// called from any goroutine. Dispatcher and the sinks are safe for
// concurrent use.
//
// # Usage
//
//	dispatcher := automation.NewDispatcher(ctx, registry, sinks, log)
//	router := automation.NewRouter(registry, nil, dispatcher, cfg.Scheduler.InboxSize)
//	gateway, _ := zwave.NewGateway(bus, router, opts)
//	router.SetNodeLister(gateway)
//	router.AddModule(automation.Module{Name: "OutdoorLightSwitch", Store: store})
//	go automation.NewTicker(time.Minute, loc, router).Run(ctx)
//	err := router.Run(ctx)
package automation
