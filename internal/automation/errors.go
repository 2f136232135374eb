package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrModuleNotFound) {
//	    // respond 404
//	}
var (
	// ErrDeviceCommandFailed wraps a failure the driver reported for one
	// actuator command. It is logged and recorded, never retried here.
	ErrDeviceCommandFailed = errors.New("automation: device command failed")

	// ErrModuleNotFound is returned when a module name is not loaded.
	ErrModuleNotFound = errors.New("automation: module not found")

	// ErrModuleExists is returned when adding a module twice.
	ErrModuleExists = errors.New("automation: module already exists")

	// ErrNotReady is returned for manual overrides before the driver is ready.
	ErrNotReady = errors.New("automation: router not ready")

	// ErrRouterStopped is returned when the router has shut down.
	ErrRouterStopped = errors.New("automation: router stopped")

	// ErrRouterRunning is returned when configuring a router after Run.
	ErrRouterRunning = errors.New("automation: router already running")

	// ErrInvalidState is returned for override states other than on or off.
	ErrInvalidState = errors.New("automation: invalid state")

	// ErrDriverFatal is returned from Run when the driver reports a fatal
	// error before becoming ready.
	ErrDriverFatal = errors.New("automation: fatal driver error")
)
