package automation

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// Value handler defaults, matching the property keys Z-Wave notification
// sensors report.
const (
	DefaultMotionProperty = "Motion sensor status"
	DefaultMotionHold     = time.Minute

	DefaultAlarmProperty = "Alarm status"
	DefaultAlarmRaised   = 3
	DefaultAlarmCleared  = 0
)

// ValueHandlers runs several handlers in order and joins their actions.
type ValueHandlers []ValueHandler

// HandleValue calls every handler.
func (hs ValueHandlers) HandleValue(ctx context.Context, module string, v ValueChanged) []ValueAction {
	var actions []ValueAction
	for _, h := range hs {
		actions = append(actions, h.HandleValue(ctx, module, v)...)
	}
	return actions
}

// MotionLight switches a module's actuators on when a motion sensor
// reports, and off again once Hold passes without another report. Every
// report restarts the hold.
//
// The off command is skipped while a schedule window or manual override
// holds the module on.
type MotionLight struct {
	// Sensors limits the handler to these nodes. Empty means any node.
	Sensors []device.NodeID

	// Property is the value property key. Default: DefaultMotionProperty
	Property string

	// Hold is how long the actuators stay on. Default: DefaultMotionHold
	Hold time.Duration
}

// HandleValue returns an immediate on and a delayed off for a motion
// report, and nothing otherwise.
func (m MotionLight) HandleValue(_ context.Context, _ string, v ValueChanged) []ValueAction {
	if v.Kind != ValueUpdated || v.Property != orDefault(m.Property, DefaultMotionProperty) || !watches(m.Sensors, v.NodeID) {
		return nil
	}
	hold := m.Hold
	if hold <= 0 {
		hold = DefaultMotionHold
	}
	return []ValueAction{
		{State: device.StateOn, Trigger: TriggerMotion},
		{State: device.StateOff, Trigger: TriggerMotion, After: hold},
	}
}

// AlarmState is the reported state of an alarm sensor.
type AlarmState string

// Alarm states.
const (
	AlarmRaised  AlarmState = "raised"
	AlarmCleared AlarmState = "cleared"
)

// AlarmEvent is broadcast on ChannelAlarm when an alarm changes state.
type AlarmEvent struct {
	Module   string        `json:"module"`
	NodeID   device.NodeID `json:"node_id"`
	Property string        `json:"property"`
	State    AlarmState    `json:"state"`
	Value    any           `json:"value"`
	At       time.Time     `json:"at"`
}

// AlarmWatch logs and broadcasts alarm raise and clear reports. It never
// commands actuators.
//
// Drivers often send the same alarm as both an update and a notification;
// only state changes per node are reported.
type AlarmWatch struct {
	sensors  []device.NodeID
	property string
	raised   float64
	cleared  float64
	hub      Broadcaster
	logger   Logger
	now      func() time.Time

	mu     sync.Mutex
	active map[device.NodeID]AlarmState
}

// AlarmOptions configures an AlarmWatch.
type AlarmOptions struct {
	// Sensors limits the watch to these nodes. Empty means any node.
	Sensors []device.NodeID

	// Property is the value property key. Default: DefaultAlarmProperty
	Property string

	// Raised and Cleared are the values that raise and clear the alarm.
	Raised  float64
	Cleared float64
}

// DefaultAlarmOptions returns the options for a standard Z-Wave alarm
// sensor on any node.
func DefaultAlarmOptions() AlarmOptions {
	return AlarmOptions{
		Property: DefaultAlarmProperty,
		Raised:   DefaultAlarmRaised,
		Cleared:  DefaultAlarmCleared,
	}
}

// NewAlarmWatch creates an alarm watch. hub and logger may be nil.
func NewAlarmWatch(opts AlarmOptions, hub Broadcaster, logger Logger) *AlarmWatch {
	if logger == nil {
		logger = noopLogger{}
	}
	return &AlarmWatch{
		sensors:  opts.Sensors,
		property: orDefault(opts.Property, DefaultAlarmProperty),
		raised:   opts.Raised,
		cleared:  opts.Cleared,
		hub:      hub,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		active:   make(map[device.NodeID]AlarmState),
	}
}

// HandleValue reports alarm transitions and returns no actions.
func (a *AlarmWatch) HandleValue(_ context.Context, module string, v ValueChanged) []ValueAction {
	if v.Property != a.property || !watches(a.sensors, v.NodeID) {
		return nil
	}
	n, ok := numericValue(v.Value)
	if !ok {
		a.logger.Debug("non-numeric alarm value ignored", "module", module, "node_id", v.NodeID, "value", v.Value)
		return nil
	}

	var state AlarmState
	switch n {
	case a.raised:
		state = AlarmRaised
	case a.cleared:
		state = AlarmCleared
	default:
		return nil
	}

	a.mu.Lock()
	prev, seen := a.active[v.NodeID]
	a.active[v.NodeID] = state
	a.mu.Unlock()
	if prev == state || (!seen && state == AlarmCleared) {
		return nil
	}

	if state == AlarmRaised {
		a.logger.Warn("alarm raised", "module", module, "node_id", v.NodeID, "property", v.Property, "value", v.Value)
	} else {
		a.logger.Info("alarm cleared", "module", module, "node_id", v.NodeID, "property", v.Property)
	}
	if a.hub != nil {
		a.hub.Broadcast(ChannelAlarm, AlarmEvent{
			Module:   module,
			NodeID:   v.NodeID,
			Property: v.Property,
			State:    state,
			Value:    v.Value,
			At:       a.now(),
		})
	}
	return nil
}

// Active returns the nodes whose alarm is currently raised, sorted.
func (a *AlarmWatch) Active() []device.NodeID {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ids []device.NodeID
	for id, st := range a.active {
		if st == AlarmRaised {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func watches(sensors []device.NodeID, id device.NodeID) bool {
	return len(sensors) == 0 || slices.Contains(sensors, id)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// numericValue converts a decoded JSON value to float64.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
