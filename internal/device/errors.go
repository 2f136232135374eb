package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrUnknownDevice) {
//	    // node is not registered; skip it
//	}
var (
	// ErrUnknownDevice is returned when a node id is not in the registry.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrUnsupportedCommand is returned when a node cannot accept the
	// requested command (wrong capability tag, or the driver reports the
	// command class as unsupported).
	ErrUnsupportedCommand = errors.New("device: unsupported command")

	// ErrInvalidNodeID is returned for node ids outside 1..232.
	ErrInvalidNodeID = errors.New("device: invalid node id")

	// ErrInvalidCapability is returned when a capability tag is not recognised.
	ErrInvalidCapability = errors.New("device: invalid capability")

	// ErrInvalidState is returned when a commanded state is not on, off or unknown.
	ErrInvalidState = errors.New("device: invalid state")
)
