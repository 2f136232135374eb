package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
)

// Trigger records why a command was dispatched.
type Trigger string

// Dispatch triggers.
const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerMotion   Trigger = "motion"
)

// TransitionCommand is one on/off transition the matcher decided on.
type TransitionCommand struct {
	State device.CommandState `json:"state"`
	Rule  schedule.RuleKind   `json:"rule,omitempty"`
}

// DispatchStatus is the lifecycle of one actuator command.
type DispatchStatus string

// Dispatch statuses.
const (
	// DispatchPending means the command was handed to the driver and no
	// result has arrived yet.
	DispatchPending DispatchStatus = "pending"
	// DispatchSucceeded means the driver acknowledged the command.
	DispatchSucceeded DispatchStatus = "succeeded"
	// DispatchFailed means the driver reported a failure or timed out.
	DispatchFailed DispatchStatus = "failed"
	// DispatchSkipped means the actuator could not be resolved and no
	// command was sent.
	DispatchSkipped DispatchStatus = "skipped"
)

// DispatchRecord is the audit entry for one command to one actuator.
type DispatchRecord struct {
	ID           string              `json:"id"`
	Module       string              `json:"module"`
	NodeID       device.NodeID       `json:"node_id"`
	Command      device.CommandState `json:"command"`
	Trigger      Trigger             `json:"trigger"`
	Status       DispatchStatus      `json:"status"`
	Error        string              `json:"error,omitempty"`
	DispatchedAt time.Time           `json:"dispatched_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// Report summarises one Apply call. Issued commands complete later and
// are delivered to the ResultSink.
type Report struct {
	Module  string              `json:"module"`
	Command device.CommandState `json:"command"`
	Trigger Trigger             `json:"trigger"`
	Issued  []device.NodeID     `json:"issued"`
	Skipped []SkippedActuator   `json:"skipped,omitempty"`
}

// SkippedActuator is an actuator Apply could not command.
type SkippedActuator struct {
	NodeID device.NodeID `json:"node_id"`
	Reason string        `json:"reason"`
}

// GenerateID creates a new UUID for a dispatch record.
func GenerateID() string {
	return uuid.New().String()
}
