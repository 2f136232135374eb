package automation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
)

// DefaultInboxSize is used when NewRouter is given a non-positive size.
const DefaultInboxSize = 64

// State is the router lifecycle state.
type State int32

// Router states.
const (
	StateUninitialized State = iota
	StateReady
	StateIdle
	StateDispatching
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Module is one behavioural module the router drives.
type Module struct {
	Name   string
	Store  *schedule.Store
	Values ValueHandler
}

// ModuleStatus is a read-only view of a module for status queries.
type ModuleStatus struct {
	Name             string                        `json:"name"`
	Source           string                        `json:"source"`
	Config           *schedule.ModuleConfiguration `json:"config"`
	State            device.CommandState           `json:"state"`
	LastRule         string                        `json:"last_rule,omitempty"`
	LastTransitionAt *time.Time                    `json:"last_transition_at,omitempty"`
}

// moduleState is owned by the router loop; mu guards it for readers.
type moduleState struct {
	module   Module
	state    device.CommandState
	lastRule schedule.RuleKind
	lastAt   time.Time

	// scheduled is the state last set by a schedule window, a manual
	// override or a reload. Value actions do not change it.
	scheduled device.CommandState

	// hold is the pending delayed value action; loop only.
	hold *pendingHold
}

type pendingHold struct {
	seq  uint64
	stop func() bool
}

// Transition is broadcast whenever a module changes state.
type Transition struct {
	Module  string              `json:"module"`
	State   device.CommandState `json:"state"`
	Rule    string              `json:"rule,omitempty"`
	Trigger Trigger             `json:"trigger"`
	Tick    string              `json:"tick,omitempty"`
	Report  Report              `json:"report"`
}

// Router is the composition root of the scheduler.
//
// A single goroutine (Run) drains a bounded FIFO inbox and handles one
// message to completion before taking the next, so two tick evaluations
// never overlap. Device commands are fire-and-forget through the
// Dispatcher and do not hold up the loop.
type Router struct {
	registry   *device.Registry
	nodes      device.NodeLister
	dispatcher *Dispatcher
	logger     Logger

	inbox   chan Message
	done    chan struct{}
	running atomic.Bool
	state   atomic.Int32

	mu      sync.RWMutex
	modules map[string]*moduleState
	order   []string

	hub    Broadcaster
	values ValueRecorder

	// now is used for transition timestamps.
	now func() time.Time

	// afterFunc schedules delayed value actions; holdSeq numbers them.
	afterFunc func(d time.Duration, f func()) (stop func() bool)
	holdSeq   uint64
}

// NewRouter creates a router.
//
// Parameters:
//   - registry: Device registry the router keeps in sync with topology
//   - nodes: Topology source used on DriverReady when the message has no snapshot
//   - dispatcher: Issues actuator commands
//   - inboxSize: Inbox capacity (DefaultInboxSize when <= 0)
func NewRouter(registry *device.Registry, nodes device.NodeLister, dispatcher *Dispatcher, inboxSize int) *Router {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Router{
		registry:   registry,
		nodes:      nodes,
		dispatcher: dispatcher,
		logger:     noopLogger{},
		inbox:      make(chan Message, inboxSize),
		done:       make(chan struct{}),
		modules:    make(map[string]*moduleState),
		now:        time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetNodeLister sets the topology source used when a reload or a
// DriverReady without a snapshot needs the current node table. It exists
// for startup ordering: the gateway that lists nodes needs the router as
// its event sink.
func (r *Router) SetNodeLister(nodes device.NodeLister) {
	r.mu.Lock()
	r.nodes = nodes
	r.mu.Unlock()
}

func (r *Router) nodeLister() device.NodeLister {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes
}

// SetBroadcaster sets where transitions and topology events are pushed.
func (r *Router) SetBroadcaster(hub Broadcaster) {
	r.hub = hub
}

// SetValueRecorder sets where sensor values are recorded.
func (r *Router) SetValueRecorder(rec ValueRecorder) {
	r.values = rec
}

// AddModule registers a module. Modules must be added before Run.
func (r *Router) AddModule(m Module) error {
	if r.running.Load() {
		return ErrRouterRunning
	}
	if m.Store == nil {
		return fmt.Errorf("module %q: no configuration store", m.Name)
	}
	if m.Values == nil {
		m.Values = IgnoreValues
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[m.Name]; ok {
		return fmt.Errorf("%w: %s", ErrModuleExists, m.Name)
	}
	normal := m.Store.Current().NormalState
	r.modules[m.Name] = &moduleState{module: m, state: normal, scheduled: normal}
	r.order = append(r.order, m.Name)
	return nil
}

// State returns the current router state.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Run processes messages until ctx is cancelled.
//
// Returns:
//   - error: nil on cancellation, ErrDriverFatal if the driver fails
//     fatally before it is ready, ErrRouterRunning if already running
func (r *Router) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRouterRunning
	}
	defer close(r.done)
	defer r.stopHolds()

	r.logger.Info("event router started", "modules", len(r.order), "inbox", cap(r.inbox))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event router stopped")
			return nil
		case msg := <-r.inbox:
			if err := r.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// Send enqueues msg, blocking while the inbox is full.
func (r *Router) Send(ctx context.Context, msg Message) error {
	select {
	case <-r.done:
		return ErrRouterStopped
	default:
	}
	select {
	case r.inbox <- msg:
		return nil
	case <-r.done:
		return ErrRouterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OfferTick enqueues t without blocking. A tick that finds the inbox
// full is dropped and logged; queued ticks are never reordered.
func (r *Router) OfferTick(t Tick) bool {
	select {
	case r.inbox <- t:
		return true
	default:
		r.logger.Warn("router inbox full, tick dropped", "tick", t.Value)
		return false
	}
}

// ApplyConfigChanges reloads a module's configuration and waits for the
// result. On ConfigInvalid the previous configuration stays active.
func (r *Router) ApplyConfigChanges(ctx context.Context, module string) (*schedule.ModuleConfiguration, error) {
	reply := make(chan reloadResult, 1)
	if err := r.Send(ctx, ConfigReloadRequested{Module: module, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.cfg, res.err
	case <-r.done:
		return nil, ErrRouterStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetActuatorsNow commands every actuator of module to state, bypassing
// the matcher.
func (r *Router) SetActuatorsNow(ctx context.Context, module string, state device.CommandState) (Report, error) {
	if state != device.StateOn && state != device.StateOff {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	reply := make(chan overrideResult, 1)
	if err := r.Send(ctx, ManualOverride{Module: module, State: state, reply: reply}); err != nil {
		return Report{}, err
	}
	select {
	case res := <-reply:
		return res.report, res.err
	case <-r.done:
		return Report{}, ErrRouterStopped
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// Modules returns the status of every module in registration order.
func (r *Router) Modules() []ModuleStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModuleStatus, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name].status())
	}
	return out
}

// Module returns the status of one module.
func (r *Router) Module(name string) (ModuleStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ms, ok := r.modules[name]
	if !ok {
		return ModuleStatus{}, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return ms.status(), nil
}

func (ms *moduleState) status() ModuleStatus {
	st := ModuleStatus{
		Name:   ms.module.Name,
		Source: ms.module.Store.SourceName(),
		Config: ms.module.Store.Current(),
		State:  ms.state,
	}
	if ms.lastRule != 0 {
		st.LastRule = ms.lastRule.String()
	}
	if !ms.lastAt.IsZero() {
		at := ms.lastAt
		st.LastTransitionAt = &at
	}
	return st
}

func (r *Router) handle(ctx context.Context, msg Message) error {
	switch m := msg.(type) {
	case Tick:
		r.handleTick(m)
	case TopologyChanged:
		r.handleTopology(m)
	case ValueChanged:
		r.handleValue(ctx, m)
	case ConfigReloadRequested:
		cfg, err := r.handleReload(m.Module)
		if m.reply != nil {
			m.reply <- reloadResult{cfg: cfg, err: err}
		}
	case ManualOverride:
		report, err := r.handleOverride(m)
		if m.reply != nil {
			m.reply <- overrideResult{report: report, err: err}
		}
	case DriverReady:
		r.handleDriverReady(m)
	case DriverError:
		return r.handleDriverError(m)
	case holdExpired:
		r.handleHoldExpired(m)
	default:
		r.logger.Warn("unhandled router message", "type", fmt.Sprintf("%T", msg))
	}
	return nil
}

func (r *Router) setState(s State) {
	prev := State(r.state.Swap(int32(s)))
	if prev != s {
		r.logger.Debug("router state changed", "from", prev, "to", s)
	}
}

func (r *Router) handleDriverReady(m DriverReady) {
	nodes := m.Nodes
	if lister := r.nodeLister(); nodes == nil && lister != nil {
		nodes = lister.Nodes()
	}
	r.syncRegistry(nodes)

	if r.State() == StateUninitialized {
		r.setState(StateReady)
		r.logger.Info("event router ready", "actuators", r.registry.Count(), "nodes", len(nodes))
		r.broadcast(ChannelRouter, map[string]any{"state": StateReady})
	}
}

func (r *Router) handleDriverError(m DriverError) error {
	if m.Fatal && r.State() == StateUninitialized {
		r.logger.Error("fatal driver error during startup", "error", m.Err)
		return fmt.Errorf("%w: %w", ErrDriverFatal, m.Err)
	}
	r.logger.Error("driver error", "error", m.Err, "fatal", m.Fatal)
	return nil
}

// syncRegistry registers every node that some module lists as an
// actuator, preserving the commanded state of entries already present.
func (r *Router) syncRegistry(nodes []device.NodeInfo) {
	wanted := r.actuatorSet()

	snapshot := make([]device.Actuator, 0, len(wanted))
	for _, n := range nodes {
		if _, ok := wanted[n.ID]; !ok {
			continue
		}
		a := device.Actuator{NodeID: n.ID, Tag: device.PrimaryTag(n.Capabilities), State: device.StateUnknown}
		if prev, err := r.registry.Get(n.ID); err == nil {
			a.State = prev.State
		}
		snapshot = append(snapshot, a)
	}
	r.registry.ReplaceAll(snapshot)

	for id := range wanted {
		if !r.registry.Has(id) {
			r.logger.Warn("configured actuator not present on network", "node_id", id)
		}
	}
}

func (r *Router) actuatorSet() map[device.NodeID]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[device.NodeID]struct{})
	for _, ms := range r.modules {
		for _, id := range ms.module.Store.Current().NodeIDs() {
			set[id] = struct{}{}
		}
	}
	return set
}

func (r *Router) handleTick(t Tick) {
	if r.State() == StateUninitialized {
		r.logger.Debug("tick before driver ready ignored", "tick", t.Value)
		return
	}

	r.setState(StateDispatching)
	defer r.setState(StateIdle)

	r.mu.RLock()
	order := append([]string(nil), r.order...)
	r.mu.RUnlock()

	for _, name := range order {
		r.evaluateModule(name, t)
	}
}

// evaluateModule runs one module's matcher and dispatches its commands.
// A panic is logged and does not stop the remaining modules or later ticks.
func (r *Router) evaluateModule(name string, t Tick) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tick evaluation failed", "module", name, "tick", t.Value, "panic", p)
		}
	}()

	r.mu.RLock()
	ms := r.modules[name]
	r.mu.RUnlock()

	cfg := ms.module.Store.Current()
	cmds := Evaluate(t.Value, cfg)
	if len(cmds) == 0 {
		return
	}

	ids := cfg.NodeIDs()
	for _, cmd := range cmds {
		r.logger.Info("schedule window matched", "module", name, "rule", cmd.Rule, "tick", t.Value, "command", cmd.State)
		report := r.dispatcher.Apply(name, cmd.State, TriggerSchedule, ids)
		r.recordTransition(ms, cmd.State, cmd.Rule, TriggerSchedule)
		r.broadcast(ChannelTransition, Transition{
			Module:  name,
			State:   cmd.State,
			Rule:    cmd.Rule.String(),
			Trigger: TriggerSchedule,
			Tick:    t.Value,
			Report:  report,
		})
	}
}

func (r *Router) recordTransition(ms *moduleState, state device.CommandState, rule schedule.RuleKind, trigger Trigger) {
	r.mu.Lock()
	ms.state = state
	ms.lastRule = rule
	ms.lastAt = r.now()
	if trigger == TriggerSchedule || trigger == TriggerManual {
		ms.scheduled = state
	}
	r.mu.Unlock()
}

func (r *Router) handleTopology(m TopologyChanged) {
	id := m.Node.ID
	switch m.Kind {
	case NodeAdded:
		r.logger.Info("node added", "node_id", id, "result", m.Result)
		if _, ok := r.actuatorSet()[id]; ok {
			if err := r.registry.Register(id, device.PrimaryTag(m.Node.Capabilities)); err != nil {
				r.logger.Error("failed to register actuator", "node_id", id, "error", err)
			}
		}
	case NodeRemoved:
		r.logger.Info("node removed", "node_id", id, "replaced", m.Replaced)
		r.registry.Unregister(id)
	default:
		r.logger.Warn("unknown topology change", "node_id", id)
		return
	}
	r.broadcast(ChannelTopology, map[string]any{
		"kind":     m.Kind.String(),
		"node_id":  id,
		"replaced": m.Replaced,
	})
}

func (r *Router) handleValue(ctx context.Context, v ValueChanged) {
	r.logger.Debug("value changed", "kind", v.Kind, "node_id", v.NodeID, "property", v.Property)

	if r.values != nil && v.Kind == ValueUpdated {
		r.values.WriteSensorValue(int(v.NodeID), v.Property, v.Value)
	}
	r.broadcast(ChannelValue, v)

	r.mu.RLock()
	mods := make([]*moduleState, 0, len(r.order))
	for _, name := range r.order {
		mods = append(mods, r.modules[name])
	}
	r.mu.RUnlock()

	for _, ms := range mods {
		for _, a := range r.deliverValue(ctx, ms.module, v) {
			r.applyValueAction(ms, a)
		}
	}
}

func (r *Router) deliverValue(ctx context.Context, m Module, v ValueChanged) (actions []ValueAction) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("value handler failed", "module", m.Name, "node_id", v.NodeID, "panic", p)
			actions = nil
		}
	}()
	return m.Values.HandleValue(ctx, m.Name, v)
}

// applyValueAction dispatches a, or arms it as the module's hold when
// delayed. A new hold replaces the pending one.
func (r *Router) applyValueAction(ms *moduleState, a ValueAction) {
	name := ms.module.Name
	if a.State != device.StateOn && a.State != device.StateOff {
		r.logger.Warn("value action with invalid state ignored", "module", name, "state", a.State)
		return
	}
	if r.State() == StateUninitialized {
		r.logger.Debug("value action before driver ready ignored", "module", name, "state", a.State)
		return
	}

	if a.After > 0 {
		if ms.hold != nil {
			ms.hold.stop()
		}
		r.holdSeq++
		expired := holdExpired{module: name, seq: r.holdSeq, action: a}
		ms.hold = &pendingHold{
			seq: r.holdSeq,
			stop: r.afterFunc(a.After, func() {
				if err := r.Send(context.Background(), expired); err != nil {
					r.logger.Debug("hold expired after router stopped", "module", name)
				}
			}),
		}
		r.logger.Debug("hold armed", "module", name, "state", a.State, "after", a.After)
		return
	}
	r.dispatchValueAction(ms, a)
}

func (r *Router) handleHoldExpired(m holdExpired) {
	r.mu.RLock()
	ms, ok := r.modules[m.module]
	r.mu.RUnlock()
	if !ok || ms.hold == nil || ms.hold.seq != m.seq {
		r.logger.Debug("stale hold ignored", "module", m.module)
		return
	}
	ms.hold = nil
	r.dispatchValueAction(ms, m.action)
}

func (r *Router) dispatchValueAction(ms *moduleState, a ValueAction) {
	name := ms.module.Name
	r.mu.RLock()
	scheduled := ms.scheduled
	r.mu.RUnlock()
	if a.State == device.StateOff && scheduled == device.StateOn {
		r.logger.Info("actuators held on by schedule, value action skipped", "module", name, "trigger", a.Trigger)
		return
	}

	r.setState(StateDispatching)
	defer r.setState(StateIdle)

	r.logger.Info("value action", "module", name, "state", a.State, "trigger", a.Trigger)
	report := r.dispatcher.Apply(name, a.State, a.Trigger, ms.module.Store.Current().NodeIDs())
	r.recordTransition(ms, a.State, 0, a.Trigger)
	r.broadcast(ChannelTransition, Transition{
		Module:  name,
		State:   a.State,
		Trigger: a.Trigger,
		Report:  report,
	})
}

func (r *Router) stopHolds() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ms := range r.modules {
		if ms.hold != nil {
			ms.hold.stop()
			ms.hold = nil
		}
	}
}

func (r *Router) handleReload(name string) (*schedule.ModuleConfiguration, error) {
	r.mu.RLock()
	ms, ok := r.modules[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	cfg, err := ms.module.Store.Reload()
	if err != nil {
		r.logger.Error("module configuration reload failed, keeping previous", "module", name, "error", err)
		return cfg, err
	}

	r.mu.Lock()
	ms.state = cfg.NormalState
	ms.scheduled = cfg.NormalState
	r.mu.Unlock()

	if lister := r.nodeLister(); r.State() != StateUninitialized && lister != nil {
		r.syncRegistry(lister.Nodes())
	}
	r.logger.Info("module configuration applied", "module", name, "actuators", len(cfg.Actuators))
	return cfg, nil
}

func (r *Router) handleOverride(m ManualOverride) (Report, error) {
	if r.State() == StateUninitialized {
		return Report{}, ErrNotReady
	}
	if m.State != device.StateOn && m.State != device.StateOff {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidState, m.State)
	}

	r.mu.RLock()
	ms, ok := r.modules[m.Module]
	r.mu.RUnlock()
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrModuleNotFound, m.Module)
	}

	r.setState(StateDispatching)
	defer r.setState(StateIdle)

	r.logger.Info("manual override", "module", m.Module, "state", m.State)
	report := r.dispatcher.Apply(m.Module, m.State, TriggerManual, ms.module.Store.Current().NodeIDs())
	r.recordTransition(ms, m.State, 0, TriggerManual)
	r.broadcast(ChannelTransition, Transition{
		Module:  m.Module,
		State:   m.State,
		Trigger: TriggerManual,
		Report:  report,
	})
	return report, nil
}

func (r *Router) broadcast(channel string, payload any) {
	if r.hub != nil {
		r.hub.Broadcast(channel, payload)
	}
}
