package automation

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
)

// Message is one inbound router event. The set of variants is closed.
type Message interface {
	routerMessage()
}

// Tick is one periodic time-of-day signal.
type Tick struct {
	At    time.Time
	Value string // FormatTick(At) in the site time zone
}

// TopologyKind distinguishes node inclusion from exclusion.
type TopologyKind int

// Topology change kinds.
const (
	NodeAdded TopologyKind = iota + 1
	NodeRemoved
)

// String returns the topology kind name.
func (k TopologyKind) String() string {
	switch k {
	case NodeAdded:
		return "added"
	case NodeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// TopologyChanged reports a node joining or leaving the network.
type TopologyChanged struct {
	Kind TopologyKind
	Node device.NodeInfo
	// Replaced is set on removal when the node was swapped for a new one.
	Replaced bool
	// Result is the driver's inclusion result, if any.
	Result string
}

// ValueKind distinguishes persistent value updates from one-off
// notifications.
type ValueKind int

// Value change kinds.
const (
	ValueUpdated ValueKind = iota + 1
	ValueNotification
)

// String returns the value kind name.
func (k ValueKind) String() string {
	switch k {
	case ValueUpdated:
		return "updated"
	case ValueNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// ValueChanged reports a sensor or device value.
type ValueChanged struct {
	Kind     ValueKind     `json:"-"`
	NodeID   device.NodeID `json:"node_id"`
	Property string        `json:"property"`
	Value    any           `json:"value"`
}

// ConfigReloadRequested asks the router to reload one module's
// configuration. Sent directly it is fire-and-forget; use
// Router.ApplyConfigChanges to wait for the outcome.
type ConfigReloadRequested struct {
	Module string
	reply  chan reloadResult
}

// ManualOverride commands every actuator of a module, bypassing the
// matcher. Use Router.SetActuatorsNow to wait for the report.
type ManualOverride struct {
	Module string
	State  device.CommandState
	reply  chan overrideResult
}

// DriverReady reports that the driver finished starting. Nodes is the
// topology snapshot used to populate the registry; when nil the router
// asks its NodeLister.
type DriverReady struct {
	Nodes []device.NodeInfo
}

// DriverError reports a driver failure. A fatal error before DriverReady
// stops the router.
type DriverError struct {
	Err   error
	Fatal bool
}

func (Tick) routerMessage()                  {}
func (TopologyChanged) routerMessage()       {}
func (ValueChanged) routerMessage()          {}
func (ConfigReloadRequested) routerMessage() {}
func (ManualOverride) routerMessage()        {}
func (DriverReady) routerMessage()           {}
func (DriverError) routerMessage()           {}
func (holdExpired) routerMessage()           {}

// holdExpired fires a delayed ValueAction. seq identifies the hold so a
// restarted hold ignores the expiry of the one it replaced.
type holdExpired struct {
	module string
	seq    uint64
	action ValueAction
}

type reloadResult struct {
	cfg *schedule.ModuleConfiguration
	err error
}

type overrideResult struct {
	report Report
	err    error
}

// ValueAction is a command a ValueHandler asks the router to apply to
// its module's actuators.
type ValueAction struct {
	State   device.CommandState
	Trigger Trigger
	// After delays the command. A delayed action replaces any delayed
	// action still pending for the same module, so repeated events
	// restart the delay.
	After time.Duration
}

// ValueHandler is a module's extension point for sensor values. It runs
// on the router loop and must not block.
type ValueHandler interface {
	HandleValue(ctx context.Context, module string, v ValueChanged) []ValueAction
}

// ValueHandlerFunc adapts a function to ValueHandler.
type ValueHandlerFunc func(ctx context.Context, module string, v ValueChanged) []ValueAction

// HandleValue calls f.
func (f ValueHandlerFunc) HandleValue(ctx context.Context, module string, v ValueChanged) []ValueAction {
	return f(ctx, module, v)
}

// IgnoreValues is the default ValueHandler: scheduled modules control
// actuators only and do not react to sensors.
var IgnoreValues ValueHandler = ValueHandlerFunc(func(context.Context, string, ValueChanged) []ValueAction { return nil })

// ValueRecorder stores sensor values as time series.
// *influxdb.Client satisfies it.
type ValueRecorder interface {
	WriteSensorValue(nodeID int, property string, value any) bool
}
