package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

func newTestDispatcher(t *testing.T, ids ...device.NodeID) (*Dispatcher, *device.Registry, *fakeProvider, *recordingSink) {
	t.Helper()
	provider := newFakeProvider()
	registry := device.NewRegistry(provider)
	for _, id := range ids {
		require.NoError(t, registry.Register(id, device.TagBinarySwitch))
	}
	sink := &recordingSink{}
	return NewDispatcher(context.Background(), registry, sink, nil), registry, provider, sink
}

func TestDispatcherApply_CommandsEveryActuator(t *testing.T) {
	d, registry, provider, sink := newTestDispatcher(t, 3, 7)

	report := d.Apply("ols", device.StateOn, TriggerSchedule, []device.NodeID{3, 7})
	d.Wait()

	assert.Equal(t, []device.NodeID{3, 7}, report.Issued)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, []setCall{{3, true}, {7, true}}, provider.Calls())

	for _, id := range []device.NodeID{3, 7} {
		a, err := registry.Get(id)
		require.NoError(t, err)
		assert.Equal(t, device.StateOn, a.State)
	}

	issued := sink.Issued()
	require.Len(t, issued, 2)
	for _, rec := range issued {
		assert.Equal(t, DispatchPending, rec.Status)
		assert.Equal(t, TriggerSchedule, rec.Trigger)
		assert.NotEmpty(t, rec.ID)
	}
	completed := sink.Completed()
	require.Len(t, completed, 2)
	for _, rec := range completed {
		assert.Equal(t, DispatchSucceeded, rec.Status)
		require.NotNil(t, rec.CompletedAt)
	}
}

func TestDispatcherApply_AlwaysRecommands(t *testing.T) {
	d, _, provider, _ := newTestDispatcher(t, 3)

	d.Apply("ols", device.StateOn, TriggerSchedule, []device.NodeID{3})
	d.Apply("ols", device.StateOn, TriggerSchedule, []device.NodeID{3})
	d.Wait()

	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0], calls[1])
}

func TestDispatcherApply_IsolatesUnknownActuator(t *testing.T) {
	d, _, provider, sink := newTestDispatcher(t, 3, 7)

	report := d.Apply("ols", device.StateOff, TriggerSchedule, []device.NodeID{3, 42, 7})
	d.Wait()

	assert.Equal(t, []device.NodeID{3, 7}, report.Issued)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, device.NodeID(42), report.Skipped[0].NodeID)
	assert.Len(t, provider.Calls(), 2)

	var skipped []DispatchRecord
	for _, rec := range sink.Issued() {
		if rec.Status == DispatchSkipped {
			skipped = append(skipped, rec)
		}
	}
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Error, "unknown device")
}

func TestDispatcherApply_SkipsUnsupportedCapability(t *testing.T) {
	d, registry, provider, _ := newTestDispatcher(t, 3)
	require.NoError(t, registry.Register(9, device.TagSensor))

	report := d.Apply("ols", device.StateOn, TriggerManual, []device.NodeID{9, 3})
	d.Wait()

	assert.Equal(t, []device.NodeID{3}, report.Issued)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, device.NodeID(9), report.Skipped[0].NodeID)
	assert.Equal(t, []setCall{{3, true}}, provider.Calls())
}

func TestDispatcherApply_DeviceFailureReportedAsynchronously(t *testing.T) {
	d, _, provider, sink := newTestDispatcher(t, 3, 7)
	provider.fail(7, errors.New("no ack"))

	report := d.Apply("ols", device.StateOn, TriggerSchedule, []device.NodeID{3, 7})
	d.Wait()

	assert.Equal(t, []device.NodeID{3, 7}, report.Issued, "failures are not known when Apply returns")

	byNode := map[device.NodeID]DispatchRecord{}
	for _, rec := range sink.Completed() {
		byNode[rec.NodeID] = rec
	}
	assert.Equal(t, DispatchSucceeded, byNode[3].Status)
	assert.Equal(t, DispatchFailed, byNode[7].Status)
	assert.Contains(t, byNode[7].Error, "no ack")
	assert.Contains(t, byNode[7].Error, ErrDeviceCommandFailed.Error())
}

func TestDispatcherApply_DoesNotWaitForDevices(t *testing.T) {
	d, _, provider, sink := newTestDispatcher(t, 3)
	provider.gate = make(chan struct{})

	report := d.Apply("ols", device.StateOn, TriggerSchedule, []device.NodeID{3})
	assert.Equal(t, []device.NodeID{3}, report.Issued)
	assert.Empty(t, sink.Completed())

	close(provider.gate)
	d.Wait()
	assert.Len(t, sink.Completed(), 1)
}

func TestDispatcherApply_CancelledBaseFailsOutstanding(t *testing.T) {
	provider := newFakeProvider()
	provider.gate = make(chan struct{})
	defer close(provider.gate)
	registry := device.NewRegistry(provider)
	require.NoError(t, registry.Register(3, device.TagBinarySwitch))
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(ctx, registry, sink, nil)
	d.Apply("ols", device.StateOff, TriggerSchedule, []device.NodeID{3})
	cancel()
	d.Wait()

	completed := sink.Completed()
	require.Len(t, completed, 1)
	assert.Equal(t, DispatchFailed, completed[0].Status)
}
