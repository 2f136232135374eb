package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
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

// Registry holds the actuators the controller may command.
//
// Entries are added and removed in response to topology events; the
// commanded state is written only by the dispatcher. Capability handles
// come from the CapabilityProvider at resolve time, so a registry entry
// never holds a stale driver reference.
//
// All public methods are thread-safe.
type Registry struct {
	provider CapabilityProvider
	logger   Logger
	now      func() time.Time

	mu        sync.RWMutex
	actuators map[NodeID]*Actuator
}

// NewRegistry creates an empty registry backed by provider.
func NewRegistry(provider CapabilityProvider) *Registry {
	return &Registry{
		provider:  provider,
		logger:    noopLogger{},
		now:       time.Now,
		actuators: make(map[NodeID]*Actuator),
	}
}

// SetProvider sets the capability provider. It exists for startup order:
// the gateway adapter that provides capabilities is built after the
// router, which needs the registry.
func (r *Registry) SetProvider(provider CapabilityProvider) {
	r.mu.Lock()
	r.provider = provider
	r.mu.Unlock()
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds a node or, if already present, updates its capability tag.
// The commanded state of an existing entry is kept.
//
// Returns:
//   - error: ErrInvalidNodeID or ErrInvalidCapability
func (r *Registry) Register(id NodeID, tag CapabilityTag) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidNodeID, id)
	}
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCapability, tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actuators[id]; ok {
		if a.Tag != tag {
			r.logger.Info("actuator capability updated", "node_id", id, "from", a.Tag, "to", tag)
			a.Tag = tag
			a.UpdatedAt = r.now()
		}
		return nil
	}

	r.actuators[id] = &Actuator{
		NodeID:    id,
		Tag:       tag,
		State:     StateUnknown,
		UpdatedAt: r.now(),
	}
	r.logger.Info("actuator registered", "node_id", id, "capability", tag)
	return nil
}

// Unregister removes a node. Removing an absent node is a no-op.
// It reports whether an entry was removed.
func (r *Registry) Unregister(id NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.actuators[id]; !ok {
		return false
	}
	delete(r.actuators, id)
	r.logger.Info("actuator unregistered", "node_id", id)
	return true
}

// ReplaceAll swaps the registry contents for a topology snapshot.
// Commanded states carried by the snapshot are preserved; entries with
// an invalid id or tag are skipped and logged.
func (r *Registry) ReplaceAll(actuators []Actuator) {
	next := make(map[NodeID]*Actuator, len(actuators))
	now := r.now()
	for _, a := range actuators {
		if !a.NodeID.Valid() || !a.Tag.Valid() {
			r.logger.Warn("skipping invalid actuator in snapshot", "node_id", a.NodeID, "capability", a.Tag)
			continue
		}
		cpy := a
		if cpy.State == "" {
			cpy.State = StateUnknown
		}
		if cpy.UpdatedAt.IsZero() {
			cpy.UpdatedAt = now
		}
		next[a.NodeID] = &cpy
	}

	r.mu.Lock()
	r.actuators = next
	r.mu.Unlock()

	r.logger.Info("registry populated", "count", len(next))
}

// Resolve returns the binary switch handle for a registered node.
//
// Returns:
//   - BinarySwitch: Handle ready for Set
//   - error: ErrUnknownDevice if the node is not registered,
//     ErrUnsupportedCommand if it is not an on/off device
func (r *Registry) Resolve(id NodeID) (BinarySwitch, error) {
	r.mu.RLock()
	a, ok := r.actuators[id]
	var tag CapabilityTag
	if ok {
		tag = a.Tag
	}
	provider := r.provider
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: node %d", ErrUnknownDevice, id)
	}
	if tag != TagBinarySwitch {
		return nil, fmt.Errorf("%w: node %d is %s", ErrUnsupportedCommand, id, tag)
	}

	if provider == nil {
		return nil, fmt.Errorf("%w: node %d: no capability provider", ErrUnsupportedCommand, id)
	}
	handle, err := provider.BinarySwitch(id)
	if err != nil {
		return nil, fmt.Errorf("resolving node %d: %w", id, err)
	}
	if !handle.IsSupported() {
		return nil, fmt.Errorf("%w: node %d does not support binary switch", ErrUnsupportedCommand, id)
	}
	return handle, nil
}

// SetCommandedState records the state last commanded to a node.
func (r *Registry) SetCommandedState(id NodeID, state CommandState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actuators[id]
	if !ok {
		return fmt.Errorf("%w: node %d", ErrUnknownDevice, id)
	}
	a.State = state
	a.UpdatedAt = r.now()
	return nil
}

// Get returns a copy of a registered actuator.
func (r *Registry) Get(id NodeID) (Actuator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actuators[id]
	if !ok {
		return Actuator{}, fmt.Errorf("%w: node %d", ErrUnknownDevice, id)
	}
	return *a, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id NodeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actuators[id]
	return ok
}

// List returns copies of all actuators ordered by node id.
func (r *Registry) List() []Actuator {
	r.mu.RLock()
	out := make([]Actuator, 0, len(r.actuators))
	for _, a := range r.actuators {
		out = append(out, *a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Count returns the number of registered actuators.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actuators)
}

// Snapshot merges the driver's node table with registry entries.
//
// Every node the driver knows appears once. Registered actuators the
// driver no longer reports are included with status Unknown so the
// audit output shows them as missing rather than hiding them.
func (r *Registry) Snapshot(nodes []NodeInfo) []StatusSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[NodeID]bool, len(nodes))
	out := make([]StatusSnapshot, 0, len(nodes))
	for _, n := range nodes {
		seen[n.ID] = true
		s := StatusSnapshot{NodeInfo: n, Failed: n.Status == NodeStatusDead}
		if a, ok := r.actuators[n.ID]; ok {
			s.Registered = true
			s.Tag = a.Tag
			s.State = a.State
		}
		out = append(out, s)
	}
	for id, a := range r.actuators {
		if seen[id] {
			continue
		}
		out = append(out, StatusSnapshot{
			NodeInfo:   NodeInfo{ID: id, Status: NodeStatusUnknown},
			Registered: true,
			Tag:        a.Tag,
			State:      a.State,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
