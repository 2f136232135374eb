package schedule

import (
	"slices"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// ActuatorRef names one actuator a module commands.
type ActuatorRef struct {
	NodeID device.NodeID `json:"node_id"`
}

// ModuleConfiguration is the validated, immutable configuration of one
// behavioural module. A reload replaces the whole value; nothing mutates
// a ModuleConfiguration after Load returns it.
type ModuleConfiguration struct {
	Name        string              `json:"name,omitempty"`
	Description string              `json:"description,omitempty"`
	Actuators   []ActuatorRef       `json:"actuators"`
	Rules       []Rule              `json:"rules"`
	NormalState device.CommandState `json:"normal_state"`

	// Ignored lists parameter names present in the file that no rule
	// kind recognises.
	Ignored []string `json:"ignored,omitempty"`
}

// Rule returns the rule of the given kind.
func (c *ModuleConfiguration) Rule(kind RuleKind) (Rule, bool) {
	for _, r := range c.Rules {
		if r.Kind == kind {
			return r, true
		}
	}
	return Rule{}, false
}

// NodeIDs returns the registered actuator ids in file order.
func (c *ModuleConfiguration) NodeIDs() []device.NodeID {
	ids := make([]device.NodeID, len(c.Actuators))
	for i, a := range c.Actuators {
		ids[i] = a.NodeID
	}
	return ids
}

// HasActuator reports whether id is one of the module's actuators.
func (c *ModuleConfiguration) HasActuator(id device.NodeID) bool {
	return slices.ContainsFunc(c.Actuators, func(a ActuatorRef) bool { return a.NodeID == id })
}
