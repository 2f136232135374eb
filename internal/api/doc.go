// Package api implements the HTTP control surface and WebSocket event
// stream for the Z-Wave controller.
//
// This package provides:
//   - Read endpoints for health, the device status snapshot and modules
//   - Control endpoints to reload a module's schedule, force its
//     actuators on or off, and start or stop inclusion/exclusion
//   - A WebSocket hub that relays schedule transitions, command results,
//     topology and value events
//   - HS256 bearer-token authentication on every mutating route and on the
//     network audit, which sends requests to the controller
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/devices
//	GET    /api/v1/modules
//	GET    /api/v1/modules/{name}
//	GET    /api/v1/modules/{name}/dispatches?limit=
//	POST   /api/v1/modules/{name}/config/apply     (token)
//	PUT    /api/v1/modules/{name}/actuators/state  (token)
//	GET    /api/v1/network/audit                   (token)
//	POST   /api/v1/network/inclusion               (token)
//	DELETE /api/v1/network/inclusion               (token)
//	POST   /api/v1/network/exclusion               (token)
//	DELETE /api/v1/network/exclusion               (token)
//	GET    /api/v1/ws
//
// Errors use a single envelope: {"status": 404, "code": "not_found",
// "message": "..."}. An invalid module configuration answers 422 and
// leaves the previous configuration active.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
