// Package device provides the Device Registry.
//
// The registry is the set of actuators the scheduler may command, keyed
// by Z-Wave node id. It does not talk to the network itself: capability
// handles are obtained from a CapabilityProvider (the Z-Wave gateway
// adapter) each time a node is resolved.
//
// # Key Types
//
//   - Actuator: node id, capability tag and last commanded state
//   - BinarySwitch: asynchronous on/off capability handle
//   - NodeInfo: the driver's view of a node (name, location, class, liveness)
//   - StatusSnapshot: NodeInfo merged with registry data for audit queries
//
// # Usage
//
//	registry := device.NewRegistry(gateway)
//	registry.SetLogger(log)
//
//	_ = registry.Register(3, device.TagBinarySwitch)
//
//	sw, err := registry.Resolve(3)
//	if errors.Is(err, device.ErrUnknownDevice) {
//	    // skip this node
//	}
//	result := <-sw.Set(ctx, true)
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Register and Unregister are
// idempotent.
package device
