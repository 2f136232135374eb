package schedule

import "github.com/nerrad567/gray-logic-zwave/internal/device"

// RuleKind enumerates the named parameters a module configuration carries.
type RuleKind int

// Rule kinds. The zero value is not a valid kind.
const (
	StartWindow1 RuleKind = iota + 1
	StopWindow1
	StartWindow2
	StopWindow2
	NormalState
)

// Persisted parameter names.
var ruleNames = map[RuleKind]string{
	StartWindow1: "Start time 1",
	StopWindow1:  "Stop time 1",
	StartWindow2: "Start time 2",
	StopWindow2:  "Stop time 2",
	NormalState:  "Normal State",
}

// RequiredKinds lists every kind a configuration must define, in the
// order they are written to disk.
func RequiredKinds() []RuleKind {
	return []RuleKind{StartWindow1, StopWindow1, StartWindow2, StopWindow2, NormalState}
}

// ParseRuleKind maps a persisted parameter name to its kind.
func ParseRuleKind(name string) (RuleKind, bool) {
	for k, n := range ruleNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// String returns the persisted parameter name.
func (k RuleKind) String() string {
	if n, ok := ruleNames[k]; ok {
		return n
	}
	return "unknown"
}

// IsStart reports whether the kind opens a window.
func (k RuleKind) IsStart() bool { return k == StartWindow1 || k == StartWindow2 }

// IsStop reports whether the kind closes a window.
func (k RuleKind) IsStop() bool { return k == StopWindow1 || k == StopWindow2 }

// IsWindow reports whether the kind carries a time of day.
func (k RuleKind) IsWindow() bool { return k.IsStart() || k.IsStop() }

// Transition returns the state a matching window rule commands.
func (k RuleKind) Transition() device.CommandState {
	switch {
	case k.IsStart():
		return device.StateOn
	case k.IsStop():
		return device.StateOff
	}
	return device.StateUnknown
}

// Rule is one named parameter and its value: a tick string or UnsetTime
// for windows, "on" or "off" for NormalState.
type Rule struct {
	Kind  RuleKind `json:"kind"`
	Value string   `json:"value"`
}

// Unset reports whether a window rule is disabled.
func (r Rule) Unset() bool {
	return r.Value == UnsetTime
}

// MarshalText writes the persisted parameter name.
func (k RuleKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
