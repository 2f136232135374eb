package zwave

import (
	"fmt"
	"strings"
)

// EventKind names a driver event.
type EventKind string

// Driver, controller and node events the gateway publishes.
const (
	EventDriverReady       EventKind = "driver_ready"
	EventError             EventKind = "error"
	EventNodeAdded         EventKind = "node_added"
	EventNodeRemoved       EventKind = "node_removed"
	EventNodeReady         EventKind = "node_ready"
	EventNodeStatus        EventKind = "node_status"
	EventValueUpdated      EventKind = "value_updated"
	EventValueNotification EventKind = "value_notification"
	EventAsleep            EventKind = "asleep"
	EventWakeup            EventKind = "wakeup"
	EventInclusionStarted  EventKind = "inclusion_started"
	EventInclusionStopped  EventKind = "inclusion_stopped"
	EventInclusionFailed   EventKind = "inclusion_failed"
	EventExclusionStarted  EventKind = "exclusion_started"
	EventExclusionStopped  EventKind = "exclusion_stopped"
	EventExclusionFailed   EventKind = "exclusion_failed"
	EventHealProgress      EventKind = "heal_network_progress"
	EventHealDone          EventKind = "heal_network_done"
	EventStatistics        EventKind = "statistics_updated"
)

var knownKinds = map[EventKind]bool{
	EventDriverReady: true, EventError: true,
	EventNodeAdded: true, EventNodeRemoved: true, EventNodeReady: true, EventNodeStatus: true,
	EventValueUpdated: true, EventValueNotification: true, EventAsleep: true, EventWakeup: true,
	EventInclusionStarted: true, EventInclusionStopped: true, EventInclusionFailed: true,
	EventExclusionStarted: true, EventExclusionStopped: true, EventExclusionFailed: true,
	EventHealProgress: true, EventHealDone: true, EventStatistics: true,
}

// Known reports whether k is an event kind the adapter understands.
func (k EventKind) Known() bool {
	return knownKinds[k]
}

// nodeScoped reports whether events of this kind must name a node.
func (k EventKind) nodeScoped() bool {
	switch k {
	case EventNodeAdded, EventNodeRemoved, EventNodeReady, EventNodeStatus,
		EventValueUpdated, EventValueNotification, EventAsleep, EventWakeup:
		return true
	default:
		return false
	}
}

// ListenerPolicy decides whether a listener fires on every occurrence of
// an event or only on the first.
type ListenerPolicy int

// Listener policies.
const (
	// FireAlways handles every occurrence.
	FireAlways ListenerPolicy = iota
	// FireOnce handles the first occurrence per node (or per gateway for
	// events without a node) and drops repeats.
	FireOnce
)

// String returns the policy as written in config.yaml.
func (p ListenerPolicy) String() string {
	if p == FireOnce {
		return "once"
	}
	return "always"
}

// ParseListenerPolicy parses "once" or "always".
func ParseListenerPolicy(s string) (ListenerPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "once":
		return FireOnce, nil
	case "always":
		return FireAlways, nil
	default:
		return FireAlways, fmt.Errorf("invalid listener policy %q", s)
	}
}

// Policies maps event kinds to listener policies.
type Policies map[EventKind]ListenerPolicy

// DefaultPolicies returns the built-in policy set: node_ready is handled
// once per node, everything else on every occurrence.
func DefaultPolicies() Policies {
	return Policies{EventNodeReady: FireOnce}
}

// PoliciesFromConfig overlays the zwave.listeners config map on the
// defaults.
//
// Returns:
//   - Policies: Effective policies
//   - error: For unknown event kinds or invalid modes
func PoliciesFromConfig(listeners map[string]string) (Policies, error) {
	p := DefaultPolicies()
	for kind, mode := range listeners {
		k := EventKind(kind)
		if !k.Known() {
			return nil, fmt.Errorf("zwave.listeners: unknown event kind %q", kind)
		}
		policy, err := ParseListenerPolicy(mode)
		if err != nil {
			return nil, fmt.Errorf("zwave.listeners.%s: %w", kind, err)
		}
		p[k] = policy
	}
	return p, nil
}

// For returns the policy for kind.
func (p Policies) For(kind EventKind) ListenerPolicy {
	return p[kind]
}

// firedKey identifies one (kind, node) occurrence for FireOnce.
type firedKey struct {
	kind EventKind
	node int
}
