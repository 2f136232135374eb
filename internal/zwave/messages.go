package zwave

import (
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// MQTT message types exchanged with the Z-Wave gateway.

// ProtocolName is the protocol identifier carried in acks.
const ProtocolName = "zwave"

// Command names.
const (
	CommandSet = "set"
)

// CommandMessage is sent to the gateway to command one node.
// Topic: graylogic/command/zwave/{node_id}
type CommandMessage struct {
	// ID correlates the command with its ack.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	// NodeID is the target node.
	NodeID int `json:"node_id"`

	// CommandClass names the command class the command targets.
	CommandClass string `json:"command_class"`

	// Command is the command name ("set").
	Command string `json:"command"`

	// Parameters carries command values, e.g. {"value": true}.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source identifies the issuer.
	Source string `json:"source"`
}

// AckStatus is the acknowledgement status of a command.
type AckStatus string

// Ack statuses.
const (
	// AckAccepted means the device accepted the command.
	AckAccepted AckStatus = "accepted"

	// AckQueued means the gateway queued the command (e.g. the node is
	// asleep). A final ack follows.
	AckQueued AckStatus = "queued"

	// AckFailed means the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout means the device did not answer.
	AckTimeout AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/zwave/{node_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    int       `json:"node_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError carries failure details.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Request actions.
const (
	ActionBeginInclusion  = "begin_inclusion"
	ActionStopInclusion   = "stop_inclusion"
	ActionBeginExclusion  = "begin_exclusion"
	ActionStopExclusion   = "stop_exclusion"
	ActionCheckFailedNode = "check_failed_node"
)

// RequestMessage asks the gateway to perform a controller operation.
// Topic: graylogic/request/zwave/{request_id}
type RequestMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	NodeID    int            `json:"node_id,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/zwave/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NodeMessage describes a node as the gateway reports it.
type NodeMessage struct {
	ID             int                `json:"id"`
	Name           string             `json:"name,omitempty"`
	Location       string             `json:"location,omitempty"`
	DeviceClass    device.DeviceClass `json:"device_class"`
	Status         string             `json:"status,omitempty"`
	Ready          bool               `json:"ready"`
	CommandClasses []string           `json:"command_classes,omitempty"`
}

// EventMessage is a driver event published by the gateway.
// Topic: graylogic/zwave/{gateway_id}/event/{kind}
//
// Which fields are set depends on the kind.
type EventMessage struct {
	Timestamp time.Time `json:"timestamp"`

	// NodeID is set for node-scoped events.
	NodeID int `json:"node_id,omitempty"`

	// Node is set for node_added, node_ready and node_status.
	Node *NodeMessage `json:"node,omitempty"`

	// Nodes is the full node list, sent with driver_ready.
	Nodes []NodeMessage `json:"nodes,omitempty"`

	// Result is the inclusion result for node_added.
	Result string `json:"result,omitempty"`

	// Replaced is set on node_removed when the node was replaced.
	Replaced bool `json:"replaced,omitempty"`

	// Property and Value are set for value events.
	Property string `json:"property,omitempty"`
	Value    any    `json:"value,omitempty"`

	// Status is the node status for node_status.
	Status string `json:"status,omitempty"`

	// Error and Fatal are set for error and *_failed events.
	Error string `json:"error,omitempty"`
	Fatal bool   `json:"fatal,omitempty"`
}

// Command class names the gateway uses.
const (
	ccBinarySwitch     = "Binary Switch"
	ccMultilevelSwitch = "Multilevel Switch"
	ccMultilevelSensor = "Multilevel Sensor"
	ccBinarySensor     = "Binary Sensor"
	ccNotification     = "Notification"
)

// capabilities maps advertised command classes to capability tags.
func capabilities(ccs []string) []device.CapabilityTag {
	var tags []device.CapabilityTag
	seen := map[device.CapabilityTag]bool{}
	add := func(t device.CapabilityTag) {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	for _, cc := range ccs {
		switch cc {
		case ccBinarySwitch:
			add(device.TagBinarySwitch)
		case ccMultilevelSwitch:
			add(device.TagMultilevelSwitch)
		case ccMultilevelSensor, ccBinarySensor, ccNotification:
			add(device.TagSensor)
		}
	}
	return tags
}

// nodeInfo converts a gateway node description.
func (n NodeMessage) nodeInfo() device.NodeInfo {
	return device.NodeInfo{
		ID:           device.NodeID(n.ID),
		Name:         n.Name,
		Location:     n.Location,
		DeviceClass:  n.DeviceClass,
		Status:       device.ParseNodeStatus(n.Status),
		Ready:        n.Ready,
		Capabilities: capabilities(n.CommandClasses),
	}
}
