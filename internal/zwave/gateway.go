package zwave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/automation"
	"github.com/nerrad567/gray-logic-zwave/internal/device"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/mqtt"
)

const (
	// defaultCommandTimeout bounds a command or request when Options
	// leaves it unset.
	defaultCommandTimeout = 10 * time.Second

	// forwardTimeout bounds how long an event waits for router inbox space.
	forwardTimeout = 5 * time.Second

	// subscribeQoS is used for every gateway subscription.
	subscribeQoS = 1
)

// Logger defines the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus is the MQTT surface the gateway needs. *mqtt.Client satisfies it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// EventSink receives translated driver events. *automation.Router
// satisfies it.
type EventSink interface {
	Send(ctx context.Context, msg automation.Message) error
}

// Options configures a Gateway.
type Options struct {
	// GatewayID names the gateway in event topics.
	GatewayID string

	// CommandTimeout bounds command acks and request responses.
	CommandTimeout time.Duration

	// Policies decides which events fire once. Nil means DefaultPolicies.
	Policies Policies

	// QoS is used for published commands and requests.
	QoS byte
}

// Gateway adapts an external Z-Wave gateway reachable over MQTT.
//
// It translates gateway events into router messages, keeps the node
// table, and implements device.CapabilityProvider and device.NodeLister.
// The mesh protocol itself runs in the gateway.
//
// Thread Safety: All methods are safe for concurrent use.
type Gateway struct {
	bus    Bus
	sink   EventSink
	opts   Options
	topics mqtt.Topics
	logger Logger
	now    func() time.Time

	mu    sync.RWMutex
	nodes map[device.NodeID]device.NodeInfo
	fired map[firedKey]bool

	// pendingMu guards the waiter maps and stopped; wg.Add happens
	// under it so Stop never waits while a command is being added.
	pendingMu sync.Mutex
	acks      map[string]chan AckMessage
	responses map[string]chan ResponseMessage
	stopped   bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewGateway creates a gateway adapter. Call Start to subscribe.
func NewGateway(bus Bus, sink EventSink, opts Options) (*Gateway, error) {
	if bus == nil {
		return nil, errors.New("zwave: bus is required")
	}
	if sink == nil {
		return nil, errors.New("zwave: event sink is required")
	}
	if opts.GatewayID == "" {
		return nil, errors.New("zwave: gateway id is required")
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.Policies == nil {
		opts.Policies = DefaultPolicies()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		bus:       bus,
		sink:      sink,
		opts:      opts,
		logger:    noopLogger{},
		now:       func() time.Time { return time.Now().UTC() },
		nodes:     make(map[device.NodeID]device.NodeInfo),
		fired:     make(map[firedKey]bool),
		acks:      make(map[string]chan AckMessage),
		responses: make(map[string]chan ResponseMessage),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// SetLogger sets the logger for the gateway.
func (g *Gateway) SetLogger(logger Logger) {
	g.logger = logger
}

// Start subscribes to gateway events, command acks and request responses.
// The error listener is in place before any event can arrive.
func (g *Gateway) Start() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{g.topics.AllZWaveEvents(g.opts.GatewayID), g.handleEvent},
		{g.topics.AllZWaveAcks(), g.handleAck},
		{g.topics.AllZWaveResponses(), g.handleResponse},
	}
	for _, s := range subs {
		if err := g.bus.Subscribe(s.topic, subscribeQoS, s.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		g.logger.Info("subscribed to gateway topic", "topic", s.topic)
	}
	g.logger.Info("zwave gateway adapter started", "gateway_id", g.opts.GatewayID)
	return nil
}

// Stop unsubscribes and fails every outstanding command with ErrStopped.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.pendingMu.Lock()
		g.stopped = true
		g.pendingMu.Unlock()
		g.cancel()
		for _, topic := range []string{
			g.topics.AllZWaveEvents(g.opts.GatewayID),
			g.topics.AllZWaveAcks(),
			g.topics.AllZWaveResponses(),
		} {
			if err := g.bus.Unsubscribe(topic); err != nil {
				g.logger.Warn("failed to unsubscribe", "topic", topic, "error", err)
			}
		}
		g.wg.Wait()
		g.logger.Info("zwave gateway adapter stopped")
	})
}

// Nodes returns the node table sorted by id.
func (g *Gateway) Nodes() []device.NodeInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]device.NodeInfo, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Node returns one node from the table.
func (g *Gateway) Node(id device.NodeID) (device.NodeInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// handleEvent translates one gateway event.
func (g *Gateway) handleEvent(topic string, payload []byte) error {
	kind := EventKind(topic[strings.LastIndex(topic, "/")+1:])
	if !kind.Known() {
		g.logger.Debug("ignoring unknown gateway event", "kind", kind)
		return nil
	}

	var ev EventMessage
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEvent, kind, err)
	}
	if ev.NodeID == 0 && ev.Node != nil {
		ev.NodeID = ev.Node.ID
	}

	if kind.nodeScoped() && !device.NodeID(ev.NodeID).Valid() {
		return fmt.Errorf("%w: %s: node id %d", ErrInvalidEvent, kind, ev.NodeID)
	}

	if !g.shouldFire(kind, ev.NodeID) {
		g.logger.Debug("repeat event ignored by listener policy", "kind", kind, "node_id", ev.NodeID)
		return nil
	}

	switch kind {
	case EventDriverReady:
		g.handleDriverReady(ev)
	case EventError:
		g.handleDriverError(ev)
	case EventNodeAdded:
		info := g.upsertNode(ev, nil)
		g.logger.Info("node added", "node_id", info.ID, "result", ev.Result)
		g.forward(automation.TopologyChanged{Kind: automation.NodeAdded, Node: info, Result: ev.Result})
	case EventNodeReady:
		info := g.upsertNode(ev, func(n *device.NodeInfo) { n.Ready = true })
		g.logger.Info("node ready", "node_id", info.ID, "device_class", info.DeviceClass.Basic)
		g.forward(automation.TopologyChanged{Kind: automation.NodeAdded, Node: info, Result: "ready"})
	case EventNodeRemoved:
		info := g.removeNode(device.NodeID(ev.NodeID))
		g.logger.Info("node removed", "node_id", info.ID, "replaced", ev.Replaced)
		g.forward(automation.TopologyChanged{Kind: automation.NodeRemoved, Node: info, Replaced: ev.Replaced})
	case EventNodeStatus:
		status := device.ParseNodeStatus(ev.Status)
		if ev.Status == "" && ev.Node != nil {
			status = device.ParseNodeStatus(ev.Node.Status)
		}
		g.setStatus(ev.NodeID, status)
	case EventAsleep:
		g.setStatus(ev.NodeID, device.NodeStatusAsleep)
	case EventWakeup:
		g.setStatus(ev.NodeID, device.NodeStatusAwake)
	case EventValueUpdated, EventValueNotification:
		vk := automation.ValueUpdated
		if kind == EventValueNotification {
			vk = automation.ValueNotification
		}
		g.forward(automation.ValueChanged{
			Kind:     vk,
			NodeID:   device.NodeID(ev.NodeID),
			Property: ev.Property,
			Value:    ev.Value,
		})
	case EventInclusionFailed, EventExclusionFailed:
		g.logger.Error("network management failed", "event", kind, "error", ev.Error)
	default:
		g.logger.Info("gateway event", "event", kind, "node_id", ev.NodeID)
	}
	return nil
}

// shouldFire applies the listener policy and records the occurrence.
func (g *Gateway) shouldFire(kind EventKind, nodeID int) bool {
	if g.opts.Policies.For(kind) != FireOnce {
		return true
	}
	key := firedKey{kind: kind, node: nodeID}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fired[key] {
		return false
	}
	g.fired[key] = true
	return true
}

func (g *Gateway) handleDriverReady(ev EventMessage) {
	g.mu.Lock()
	g.nodes = make(map[device.NodeID]device.NodeInfo, len(ev.Nodes))
	for _, n := range ev.Nodes {
		info := n.nodeInfo()
		if !info.ID.Valid() {
			g.logger.Warn("ignoring node with invalid id", "node_id", n.ID)
			continue
		}
		g.nodes[info.ID] = info
	}
	count := len(g.nodes)
	g.mu.Unlock()

	g.logger.Info("zwave driver ready", "nodes", count)
	g.forward(automation.DriverReady{Nodes: g.Nodes()})
}

func (g *Gateway) handleDriverError(ev EventMessage) {
	msg := ev.Error
	if msg == "" {
		msg = "unspecified driver error"
	}
	g.logger.Error("zwave driver error", "error", msg, "fatal", ev.Fatal)
	g.forward(automation.DriverError{Err: errors.New(msg), Fatal: ev.Fatal})
}

// upsertNode merges an event's node description into the table.
func (g *Gateway) upsertNode(ev EventMessage, mutate func(*device.NodeInfo)) device.NodeInfo {
	id := device.NodeID(ev.NodeID)

	g.mu.Lock()
	defer g.mu.Unlock()

	info, ok := g.nodes[id]
	if !ok {
		info = device.NodeInfo{ID: id}
	}
	if ev.Node != nil {
		fresh := ev.Node.nodeInfo()
		fresh.ID = id
		if !fresh.Ready {
			fresh.Ready = info.Ready
		}
		if fresh.Status == device.NodeStatusUnknown {
			fresh.Status = info.Status
		}
		info = fresh
	}
	if mutate != nil {
		mutate(&info)
	}
	g.nodes[id] = info
	return info
}

func (g *Gateway) removeNode(id device.NodeID) device.NodeInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	info, ok := g.nodes[id]
	if !ok {
		info = device.NodeInfo{ID: id}
	}
	delete(g.nodes, id)
	for key := range g.fired {
		if key.node == int(id) {
			delete(g.fired, key)
		}
	}
	return info
}

func (g *Gateway) setStatus(nodeID int, status device.NodeStatus) {
	id := device.NodeID(nodeID)

	g.mu.Lock()
	info, ok := g.nodes[id]
	if ok {
		info.Status = status
		g.nodes[id] = info
	}
	g.mu.Unlock()

	if !ok {
		g.logger.Debug("status for unknown node", "node_id", nodeID, "status", status)
		return
	}
	if status == device.NodeStatusDead {
		g.logger.Warn("node is dead", "node_id", nodeID)
	} else {
		g.logger.Debug("node status", "node_id", nodeID, "status", status)
	}
}

// forward hands msg to the router, waiting a bounded time for inbox space.
func (g *Gateway) forward(msg automation.Message) {
	ctx, cancel := context.WithTimeout(g.ctx, forwardTimeout)
	defer cancel()
	if err := g.sink.Send(ctx, msg); err != nil {
		g.logger.Warn("gateway event not delivered to router", "type", fmt.Sprintf("%T", msg), "error", err)
	}
}
