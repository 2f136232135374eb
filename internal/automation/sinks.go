package automation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/mqtt"
)

// MultiSink fans records out to several sinks in order.
type MultiSink []ResultSink

// CommandIssued forwards to every sink.
func (m MultiSink) CommandIssued(rec DispatchRecord) {
	for _, s := range m {
		s.CommandIssued(rec)
	}
}

// CommandCompleted forwards to every sink.
func (m MultiSink) CommandCompleted(rec DispatchRecord) {
	for _, s := range m {
		s.CommandCompleted(rec)
	}
}

// DefaultQueueSize is used when NewQueuedSink is given a non-positive size.
const DefaultQueueSize = 256

type sinkEvent struct {
	rec       DispatchRecord
	completed bool
}

// QueuedSink hands records to a wrapped sink on its own goroutine, so slow
// writers (SQLite, MQTT, InfluxDB) never hold up the router loop.
//
// Records reach the wrapped sink in the order they were queued. Issued
// records are queued without blocking and dropped with an error log when
// the queue is full; completed records wait for space because they
// arrive on background goroutines.
type QueuedSink struct {
	next   ResultSink
	logger Logger
	queue  chan sinkEvent

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewQueuedSink starts the writer goroutine. Call Close to drain it.
func NewQueuedSink(next ResultSink, size int, logger Logger) *QueuedSink {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	q := &QueuedSink{
		next:   next,
		logger: logger,
		queue:  make(chan sinkEvent, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *QueuedSink) run() {
	defer close(q.done)
	for ev := range q.queue {
		if ev.completed {
			q.next.CommandCompleted(ev.rec)
		} else {
			q.next.CommandIssued(ev.rec)
		}
	}
}

// CommandIssued queues rec without blocking.
func (q *QueuedSink) CommandIssued(rec DispatchRecord) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("dispatch record after sink closed", "id", rec.ID, "status", rec.Status)
		return
	}
	select {
	case q.queue <- sinkEvent{rec: rec}:
	default:
		q.logger.Error("dispatch sink queue full, record dropped", "id", rec.ID, "module", rec.Module, "node_id", rec.NodeID)
	}
}

// CommandCompleted queues rec, waiting for space.
func (q *QueuedSink) CommandCompleted(rec DispatchRecord) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("dispatch record after sink closed", "id", rec.ID, "status", rec.Status)
		return
	}
	q.queue <- sinkEvent{rec: rec, completed: true}
}

// Close stops accepting records and waits until every queued record has
// been written.
func (q *QueuedSink) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()
	<-q.done
}

// repositoryTimeout bounds each dispatch log write.
const repositoryTimeout = 5 * time.Second

// RepositorySink writes records to the dispatch log.
type RepositorySink struct {
	Repo   Repository
	Logger Logger
}

// CommandIssued inserts the record.
func (s RepositorySink) CommandIssued(rec DispatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), repositoryTimeout)
	defer cancel()
	if err := s.Repo.Create(ctx, &rec); err != nil {
		s.logger().Error("failed to write dispatch record", "id", rec.ID, "error", err)
	}
}

// CommandCompleted stores the outcome.
func (s RepositorySink) CommandCompleted(rec DispatchRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), repositoryTimeout)
	defer cancel()
	if err := s.Repo.Complete(ctx, rec.ID, rec.Status, rec.Error, *rec.CompletedAt); err != nil {
		s.logger().Error("failed to complete dispatch record", "id", rec.ID, "error", err)
	}
}

func (s RepositorySink) logger() Logger {
	if s.Logger == nil {
		return noopLogger{}
	}
	return s.Logger
}

// MetricsWriter records actuator commands as time series.
// *influxdb.Client satisfies it.
type MetricsWriter interface {
	WriteActuatorCommand(module string, nodeID int, command string, ok bool)
}

// MetricsSink writes completed commands to a MetricsWriter.
type MetricsSink struct {
	Writer MetricsWriter
}

// CommandIssued is a no-op; only outcomes are recorded.
func (MetricsSink) CommandIssued(DispatchRecord) {}

// CommandCompleted writes one point.
func (s MetricsSink) CommandCompleted(rec DispatchRecord) {
	s.Writer.WriteActuatorCommand(rec.Module, int(rec.NodeID), string(rec.Command), rec.Status == DispatchSucceeded)
}

// Broadcaster pushes events to live UI clients. The API hub satisfies it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Broadcast channels.
const (
	ChannelDispatch   = "dispatch.result"
	ChannelTransition = "module.transition"
	ChannelTopology   = "network.topology"
	ChannelValue      = "node.value"
	ChannelRouter     = "router.state"
	ChannelAlarm      = "alarm.state"
)

// BroadcastSink publishes skipped and completed records to live clients.
type BroadcastSink struct {
	Hub Broadcaster
}

// CommandIssued broadcasts skipped commands only.
func (s BroadcastSink) CommandIssued(rec DispatchRecord) {
	if rec.Status == DispatchSkipped {
		s.Hub.Broadcast(ChannelDispatch, rec)
	}
}

// CommandCompleted broadcasts the outcome.
func (s BroadcastSink) CommandCompleted(rec DispatchRecord) {
	s.Hub.Broadcast(ChannelDispatch, rec)
}

// Publisher publishes to the message bus. *mqtt.Client satisfies it.
type Publisher interface {
	PublishDefault(topic string, payload []byte) error
}

// BusSink mirrors completed records on
// graylogic/core/module/{module}/dispatch for other bus consumers.
type BusSink struct {
	Bus    Publisher
	Logger Logger
}

// CommandIssued is a no-op.
func (BusSink) CommandIssued(DispatchRecord) {}

// CommandCompleted publishes the record as JSON.
func (s BusSink) CommandCompleted(rec DispatchRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.Bus.PublishDefault(mqtt.Topics{}.CoreModuleDispatch(rec.Module), payload); err != nil && s.Logger != nil {
		s.Logger.Warn("failed to publish dispatch record", "id", rec.ID, "error", err)
	}
}
