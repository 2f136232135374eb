package automation

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/schedule"
)

// TickSink receives ticks. *Router satisfies it.
type TickSink interface {
	OfferTick(t Tick) bool
}

// Ticker emits a Tick at every interval boundary of the wall clock.
type Ticker struct {
	interval time.Duration
	loc      *time.Location
	sink     TickSink
	logger   Logger

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

// NewTicker creates a ticker. A zero interval means one minute; a nil
// location means UTC.
func NewTicker(interval time.Duration, loc *time.Location, sink TickSink) *Ticker {
	if interval <= 0 {
		interval = time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Ticker{
		interval: interval,
		loc:      loc,
		sink:     sink,
		logger:   noopLogger{},
		now:      time.Now,
		after:    time.After,
	}
}

// SetLogger sets the logger for the ticker.
func (t *Ticker) SetLogger(logger Logger) {
	t.logger = logger
}

// Run emits ticks until ctx is cancelled.
//
// Each tick carries the boundary it was scheduled for, not the time the
// timer fired. A boundary is never emitted twice: if the wall clock steps
// back, the ticker waits for the first boundary after the last tick.
func (t *Ticker) Run(ctx context.Context) {
	t.logger.Info("scheduler ticker started", "interval", t.interval, "location", t.loc.String())
	var last time.Time
	for {
		if ctx.Err() != nil {
			return
		}
		now := t.now()
		next := t.nextBoundary(now)
		if !last.IsZero() && !next.After(last) {
			t.logger.Warn("wall clock stepped back, holding ticks", "last_tick", schedule.FormatTick(last), "now", now.In(t.loc))
			next = last.Add(t.interval)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.after(next.Sub(now)):
			t.emit(next)
			last = next
		}
	}
}

// nextBoundary returns the first interval boundary after now, in the
// ticker's location. Boundaries are aligned to the wall clock there, so a
// one-minute ticker fires at :00 seconds. The result has no monotonic
// reading, so comparisons between boundaries use wall time.
func (t *Ticker) nextBoundary(now time.Time) time.Time {
	local := now.In(t.loc)
	_, offset := local.Zone()
	shifted := local.Add(time.Duration(offset) * time.Second)
	next := shifted.Truncate(t.interval).Add(t.interval)
	return local.Add(next.Sub(shifted))
}

// untilNext returns the delay from now to the next interval boundary.
func (t *Ticker) untilNext(now time.Time) time.Duration {
	return t.nextBoundary(now).Sub(now)
}

func (t *Ticker) emit(at time.Time) {
	tick := Tick{At: at, Value: schedule.FormatTick(at)}
	t.logger.Debug("tick", "value", tick.Value)
	t.sink.OfferTick(tick)
}
