package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Resolver is what the dispatcher needs from the device registry.
type Resolver interface {
	Resolve(id device.NodeID) (device.BinarySwitch, error)
	SetCommandedState(id device.NodeID, state device.CommandState) error
}

// ResultSink receives dispatch records.
//
// CommandIssued is called synchronously from Apply with a pending or
// skipped record. CommandCompleted is called from a background goroutine
// once the driver reports the outcome, with a succeeded or failed record.
// Implementations must be safe for concurrent use.
type ResultSink interface {
	CommandIssued(rec DispatchRecord)
	CommandCompleted(rec DispatchRecord)
}

// Dispatcher issues on/off commands to a module's actuators.
//
// Commands are always sent, even when the registry already records the
// requested state: the hardware is authoritative and may have been
// switched by hand. A failure to resolve one actuator never stops the
// others.
type Dispatcher struct {
	resolver Resolver
	sink     ResultSink
	logger   Logger
	now      func() time.Time

	// base outlives individual Apply calls so results are still collected
	// after the caller's context ends.
	base     context.Context
	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher. sink may be nil.
//
// Parameters:
//   - base: Context bounding outstanding device commands (cancel on shutdown)
//   - resolver: Usually *device.Registry
//   - sink: Receives every dispatch record
//   - logger: Logger instance (nil for none)
func NewDispatcher(base context.Context, resolver Resolver, sink ResultSink, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	if sink == nil {
		sink = MultiSink{}
	}
	return &Dispatcher{
		resolver: resolver,
		sink:     sink,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		base:     base,
	}
}

// Apply sends state to every actuator in ids and returns without waiting
// for the devices to answer.
//
// Apply does not return an error: unresolvable actuators are reported in
// Report.Skipped and to the sink, and device failures arrive later
// through ResultSink.CommandCompleted.
func (d *Dispatcher) Apply(module string, state device.CommandState, trigger Trigger, ids []device.NodeID) Report {
	report := Report{Module: module, Command: state, Trigger: trigger}
	on := state.Bool()

	for _, id := range ids {
		rec := DispatchRecord{
			ID:           GenerateID(),
			Module:       module,
			NodeID:       id,
			Command:      state,
			Trigger:      trigger,
			DispatchedAt: d.now(),
		}

		sw, err := d.resolver.Resolve(id)
		if err != nil {
			rec.Status = DispatchSkipped
			rec.Error = err.Error()
			report.Skipped = append(report.Skipped, SkippedActuator{NodeID: id, Reason: err.Error()})
			if errors.Is(err, device.ErrUnknownDevice) {
				d.logger.Warn("actuator not registered, skipping", "module", module, "node_id", id)
			} else {
				d.logger.Error("actuator cannot be commanded, skipping", "module", module, "node_id", id, "error", err)
			}
			d.sink.CommandIssued(rec)
			continue
		}

		result := sw.Set(d.base, on)
		if err := d.resolver.SetCommandedState(id, state); err != nil {
			// Unregistered between Resolve and here; the command is already out.
			d.logger.Debug("commanded state not recorded", "node_id", id, "error", err)
		}

		rec.Status = DispatchPending
		report.Issued = append(report.Issued, id)
		d.sink.CommandIssued(rec)

		d.inflight.Add(1)
		go d.await(rec, result)
	}

	d.logger.Info("actuators commanded",
		"module", module,
		"command", state,
		"trigger", trigger,
		"issued", len(report.Issued),
		"skipped", len(report.Skipped),
	)
	return report
}

func (d *Dispatcher) await(rec DispatchRecord, result <-chan error) {
	defer d.inflight.Done()

	var err error
	select {
	case err = <-result:
	case <-d.base.Done():
		err = d.base.Err()
	}

	completed := d.now()
	rec.CompletedAt = &completed
	if err != nil {
		err = fmt.Errorf("%w: node %d: %w", ErrDeviceCommandFailed, rec.NodeID, err)
		rec.Status = DispatchFailed
		rec.Error = err.Error()
		d.logger.Error("device command failed",
			"module", rec.Module,
			"node_id", rec.NodeID,
			"command", rec.Command,
			"error", err,
		)
	} else {
		rec.Status = DispatchSucceeded
		d.logger.Debug("device command acknowledged", "module", rec.Module, "node_id", rec.NodeID, "command", rec.Command)
	}
	d.sink.CommandCompleted(rec)
}

// Wait blocks until every issued command has reported a result.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}
