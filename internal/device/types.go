package device

import (
	"fmt"
	"strings"
	"time"
)

// MaxNodeID is the highest node id a classic Z-Wave network assigns.
const MaxNodeID = 232

// NodeID is a device's network-layer address.
type NodeID int

// Valid reports whether id is a usable node address.
func (id NodeID) Valid() bool {
	return id >= 1 && id <= MaxNodeID
}

// CapabilityTag names the command set a registered device accepts.
type CapabilityTag string

// Capability tags.
const (
	TagBinarySwitch     CapabilityTag = "binary-switch"
	TagMultilevelSwitch CapabilityTag = "multilevel-switch"
	TagSensor           CapabilityTag = "sensor"
)

// Valid reports whether t is a known capability tag.
func (t CapabilityTag) Valid() bool {
	switch t {
	case TagBinarySwitch, TagMultilevelSwitch, TagSensor:
		return true
	}
	return false
}

// PrimaryTag picks the tag an actuator is registered under from the
// capabilities a node advertises. Binary switching wins when offered.
// Nodes that advertise nothing (not yet interviewed) are assumed to be
// binary switches; the driver's support check catches mistakes at
// command time.
func PrimaryTag(caps []CapabilityTag) CapabilityTag {
	if len(caps) == 0 {
		return TagBinarySwitch
	}
	for _, c := range caps {
		if c == TagBinarySwitch {
			return TagBinarySwitch
		}
	}
	return caps[0]
}

// CommandState is the last state the controller commanded, not a
// reading from the hardware.
type CommandState string

// Commanded states.
const (
	StateOn      CommandState = "on"
	StateOff     CommandState = "off"
	StateUnknown CommandState = "unknown"
)

// ParseCommandState converts "on"/"off"/"unknown" (any case) to a CommandState.
func ParseCommandState(s string) (CommandState, error) {
	switch st := CommandState(strings.ToLower(strings.TrimSpace(s))); st {
	case StateOn, StateOff, StateUnknown:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
}

// Bool returns the switch value for on/off. Unknown maps to false.
func (s CommandState) Bool() bool {
	return s == StateOn
}

// Actuator is one controllable device known to the registry.
type Actuator struct {
	NodeID    NodeID        `json:"node_id"`
	Tag       CapabilityTag `json:"capability"`
	State     CommandState  `json:"state"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NodeStatus is a node's liveness as reported by the driver.
type NodeStatus int

// Liveness values, in the order the driver enumerates them.
const (
	NodeStatusUnknown NodeStatus = iota
	NodeStatusAsleep
	NodeStatusAwake
	NodeStatusDead
	NodeStatusAlive
)

var nodeStatusNames = [...]string{"Unknown", "Asleep", "Awake", "Dead", "Alive"}

// String returns the status label used in audit output.
func (s NodeStatus) String() string {
	if s < 0 || int(s) >= len(nodeStatusNames) {
		return nodeStatusNames[NodeStatusUnknown]
	}
	return nodeStatusNames[s]
}

// ParseNodeStatus accepts either the label ("Dead", case-insensitive)
// or the driver's numeric value as a string. Anything else is Unknown.
func ParseNodeStatus(s string) NodeStatus {
	s = strings.TrimSpace(s)
	for i, name := range nodeStatusNames {
		if strings.EqualFold(s, name) || s == fmt.Sprint(i) {
			return NodeStatus(i)
		}
	}
	return NodeStatusUnknown
}

// MarshalText renders the status label in JSON output.
func (s NodeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts labels and numeric strings.
func (s *NodeStatus) UnmarshalText(b []byte) error {
	*s = ParseNodeStatus(string(b))
	return nil
}

// DeviceClass holds the driver's device class labels.
type DeviceClass struct {
	Basic    string `json:"basic,omitempty"`
	Generic  string `json:"generic,omitempty"`
	Specific string `json:"specific,omitempty"`
}

// NodeInfo is the driver's view of one node.
type NodeInfo struct {
	ID           NodeID          `json:"node_id"`
	Name         string          `json:"name,omitempty"`
	Location     string          `json:"location,omitempty"`
	DeviceClass  DeviceClass     `json:"device_class"`
	Status       NodeStatus      `json:"status"`
	Ready        bool            `json:"ready"`
	Capabilities []CapabilityTag `json:"capabilities,omitempty"`
}

// StatusSnapshot combines a node's driver view with its registry entry.
// It backs the device audit query.
type StatusSnapshot struct {
	NodeInfo
	Registered bool          `json:"registered"`
	Tag        CapabilityTag `json:"capability,omitempty"`
	State      CommandState  `json:"state,omitempty"`
	Failed     bool          `json:"failed"`
}
