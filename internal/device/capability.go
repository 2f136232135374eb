package device

import "context"

// BinarySwitch is the capability handle for on/off devices.
//
// Set never blocks on the network. It returns a channel that receives
// exactly one value: nil when the device acknowledged the command, or
// the driver's error otherwise. The channel is then closed.
type BinarySwitch interface {
	IsSupported() bool
	Set(ctx context.Context, on bool) <-chan error
}

// CapabilityProvider looks up capability handles for nodes.
// The Z-Wave gateway adapter implements it.
type CapabilityProvider interface {
	BinarySwitch(id NodeID) (BinarySwitch, error)
}

// NodeLister returns the driver's current node table.
type NodeLister interface {
	Nodes() []NodeInfo
}
