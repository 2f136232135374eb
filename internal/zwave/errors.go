package zwave

import "errors"

// Domain errors for the Z-Wave gateway adapter.
var (
	// ErrCommandRejected is returned when the gateway acks a command as failed.
	ErrCommandRejected = errors.New("zwave: command rejected")

	// ErrCommandTimeout is returned when no ack arrives within the command
	// timeout, or the gateway reports the device did not answer.
	ErrCommandTimeout = errors.New("zwave: command timed out")

	// ErrRequestFailed is returned when the gateway answers a controller
	// request (inclusion, exclusion, failed-node check) unsuccessfully.
	ErrRequestFailed = errors.New("zwave: request failed")

	// ErrUnknownNode is returned when a node is not in the node table.
	ErrUnknownNode = errors.New("zwave: unknown node")

	// ErrInvalidEvent is returned for event messages that cannot be parsed.
	ErrInvalidEvent = errors.New("zwave: invalid event")

	// ErrStopped is returned once the gateway has been stopped.
	ErrStopped = errors.New("zwave: gateway stopped")
)
