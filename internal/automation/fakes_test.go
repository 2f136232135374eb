package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
)

// fakeSwitch records Set calls and answers with result.
type fakeSwitch struct {
	provider *fakeProvider
	id       device.NodeID
}

func (s *fakeSwitch) IsSupported() bool { return true }

func (s *fakeSwitch) Set(_ context.Context, on bool) <-chan error {
	return s.provider.set(s.id, on)
}

type setCall struct {
	NodeID device.NodeID
	On     bool
}

// fakeProvider hands out fakeSwitches and records every command.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []setCall
	failing map[device.NodeID]error
	// gate, when set, holds every result until closed.
	gate chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{failing: make(map[device.NodeID]error)}
}

func (p *fakeProvider) BinarySwitch(id device.NodeID) (device.BinarySwitch, error) {
	return &fakeSwitch{provider: p, id: id}, nil
}

func (p *fakeProvider) set(id device.NodeID, on bool) <-chan error {
	p.mu.Lock()
	p.calls = append(p.calls, setCall{NodeID: id, On: on})
	err := p.failing[id]
	gate := p.gate
	p.mu.Unlock()

	ch := make(chan error, 1)
	if gate == nil {
		ch <- err
		return ch
	}
	go func() {
		<-gate
		ch <- err
	}()
	return ch
}

func (p *fakeProvider) fail(id device.NodeID, err error) {
	p.mu.Lock()
	p.failing[id] = err
	p.mu.Unlock()
}

func (p *fakeProvider) Calls() []setCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]setCall(nil), p.calls...)
}

// recordingSink collects dispatch records.
type recordingSink struct {
	mu        sync.Mutex
	issued    []DispatchRecord
	completed []DispatchRecord
}

func (s *recordingSink) CommandIssued(rec DispatchRecord) {
	s.mu.Lock()
	s.issued = append(s.issued, rec)
	s.mu.Unlock()
}

func (s *recordingSink) CommandCompleted(rec DispatchRecord) {
	s.mu.Lock()
	s.completed = append(s.completed, rec)
	s.mu.Unlock()
}

func (s *recordingSink) Issued() []DispatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DispatchRecord(nil), s.issued...)
}

func (s *recordingSink) Completed() []DispatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DispatchRecord(nil), s.completed...)
}

// staticNodes is a NodeLister over a fixed node list.
type staticNodes []device.NodeInfo

func (n staticNodes) Nodes() []device.NodeInfo { return n }

func switchNodes(ids ...device.NodeID) staticNodes {
	nodes := make(staticNodes, len(ids))
	for i, id := range ids {
		nodes[i] = device.NodeInfo{
			ID:           id,
			Status:       device.NodeStatusAlive,
			Ready:        true,
			Capabilities: []device.CapabilityTag{device.TagBinarySwitch},
		}
	}
	return nodes
}

// moduleConfig builds a configuration with the given window values in
// Start 1, Stop 1, Start 2, Stop 2 order.
func moduleConfig(ids []device.NodeID, start1, stop1, start2, stop2 string) *schedule.ModuleConfiguration {
	cfg := &schedule.ModuleConfiguration{
		Name: "Outdoor Light Switch",
		Rules: []schedule.Rule{
			{Kind: schedule.StartWindow1, Value: start1},
			{Kind: schedule.StopWindow1, Value: stop1},
			{Kind: schedule.StartWindow2, Value: start2},
			{Kind: schedule.StopWindow2, Value: stop2},
			{Kind: schedule.NormalState, Value: "off"},
		},
		NormalState: device.StateOff,
	}
	for _, id := range ids {
		cfg.Actuators = append(cfg.Actuators, schedule.ActuatorRef{NodeID: id})
	}
	return cfg
}

// moduleJSON renders a module file in the persisted layout.
func moduleJSON(t *testing.T, ids []device.NodeID, start1, stop1 string) []byte {
	t.Helper()
	actuators := make([]map[string]any, len(ids))
	for i, id := range ids {
		actuators[i] = map[string]any{"nodeId": int(id)}
	}
	data, err := json.Marshal(map[string]any{
		"name":                "Outdoor Light Switch",
		"registeredActuators": actuators,
		"userAppConfigurationParameters": []map[string]string{
			{"name": "Start time 1", "value": start1},
			{"name": "Stop time 1", "value": stop1},
			{"name": "Start time 2", "value": schedule.UnsetTime},
			{"name": "Stop time 2", "value": schedule.UnsetTime},
			{"name": "Normal State", "value": "off"},
		},
	})
	require.NoError(t, err)
	return data
}

// mutableSource is a schedule.Source whose bytes can be swapped.
type mutableSource struct {
	mu   sync.Mutex
	data []byte
}

func (s *mutableSource) Name() string { return "memory" }

func (s *mutableSource) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, errors.New("no data")
	}
	return append([]byte(nil), s.data...), nil
}

func (s *mutableSource) Set(data []byte) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}
