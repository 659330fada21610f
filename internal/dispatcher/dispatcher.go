// Package dispatcher batches resource events and delivers them to
// subscribers on a fixed cadence.
//
// Producers call Enqueue from any goroutine. The first enqueue starts a
// single worker which waits for the flush delay, swaps the pending queue out
// and delivers it. A worker that wakes up to an empty queue exits; the next
// Enqueue starts a new one. Bursts of events that arrive within one delay
// window are therefore delivered as a single batch.
package dispatcher

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/focusrank/focusrank/internal/models"
)

// DefaultFlushDelay is how long the worker waits before draining the queue.
const DefaultFlushDelay = time.Second

// Subscriber receives one flushed batch. The slice is shared between all
// subscribers of the batch and must not be modified.
type Subscriber func(batch []models.Event)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces the real clock, mostly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// WithFlushDelay sets the delay between the first enqueue and the flush.
func WithFlushDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		if delay > 0 {
			d.delay = delay
		}
	}
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

type subscription struct {
	id uuid.UUID
	fn Subscriber
}

// Dispatcher owns the pending event queue.
type Dispatcher struct {
	logger  slog.Logger
	clock   quartz.Clock
	delay   time.Duration
	metrics *Metrics

	mu      sync.Mutex
	queue   []models.Event
	running bool
	closed  bool

	// deliverMu keeps batches in the order they were taken off the queue
	// when Flush races with the worker.
	deliverMu sync.Mutex

	subsMu sync.RWMutex
	subs   []subscription

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a dispatcher. No goroutine runs until the first Enqueue.
func New(logger slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: logger.Named("dispatcher"),
		clock:  quartz.NewReal(),
		delay:  DefaultFlushDelay,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}
	return d
}

// Subscribe registers fn for every future batch.
func (d *Dispatcher) Subscribe(fn Subscriber) uuid.UUID {
	id := uuid.New()
	d.subsMu.Lock()
	d.subs = append(d.subs, subscription{id: id, fn: fn})
	d.subsMu.Unlock()
	return id
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (d *Dispatcher) Unsubscribe(id uuid.UUID) {
	d.subsMu.Lock()
	d.subs = slices.DeleteFunc(d.subs, func(s subscription) bool {
		return s.id == id
	})
	d.subsMu.Unlock()
}

// Enqueue appends an event to the pending queue and makes sure the worker
// is running. It never blocks on subscribers.
func (d *Dispatcher) Enqueue(event models.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.metrics.EventsDropped.Inc()
		d.logger.Debug(context.Background(), "dropping event after close", slog.F("event", event.String()))
		return
	}

	d.queue = append(d.queue, event)
	d.metrics.EventsEnqueued.Inc()

	if !d.running {
		d.running = true
		d.wg.Add(1)
		go d.run()
	}
}

// Prune removes every queued event for the (application, uri) pair and
// returns how many were removed.
func (d *Dispatcher) Prune(application, uri string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := len(d.queue)
	d.queue = slices.DeleteFunc(d.queue, func(e models.Event) bool {
		return e.SameResource(application, uri)
	})
	removed := before - len(d.queue)
	if removed > 0 {
		d.metrics.EventsPruned.Add(float64(removed))
	}
	return removed
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Running reports whether the flush worker is alive.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Flush synchronously delivers whatever is queued.
func (d *Dispatcher) Flush() {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	batch := d.take()
	d.mu.Unlock()

	d.deliver(batch)
}

// Close stops the worker. Events queued before Close are delivered as a
// final batch; events enqueued afterwards are dropped.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.stop)
		d.wg.Wait()

		// The worker may have exited on an empty queue right before the
		// last enqueue was refused; anything left is delivered here.
		d.Flush()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		timer := d.clock.NewTimer(d.delay, "dispatcher", "flush")

		select {
		case <-d.stop:
			timer.Stop()
			d.deliverMu.Lock()
			d.mu.Lock()
			batch := d.take()
			d.running = false
			d.mu.Unlock()
			d.deliver(batch)
			d.deliverMu.Unlock()
			return

		case <-timer.C:
		}

		d.deliverMu.Lock()
		d.mu.Lock()
		batch := d.take()
		if len(batch) == 0 {
			// Nothing arrived while we slept. The next Enqueue sees
			// running == false under the same lock and starts a new worker.
			d.running = false
			d.mu.Unlock()
			d.deliverMu.Unlock()
			return
		}
		d.mu.Unlock()

		d.deliver(batch)
		d.deliverMu.Unlock()
	}
}

// take swaps the queue out. d.mu must be held.
func (d *Dispatcher) take() []models.Event {
	batch := d.queue
	d.queue = nil
	return batch
}

func (d *Dispatcher) deliver(batch []models.Event) {
	if len(batch) == 0 {
		return
	}

	d.subsMu.RLock()
	subs := slices.Clone(d.subs)
	d.subsMu.RUnlock()

	d.metrics.BatchesFlushed.Inc()
	d.metrics.BatchSize.Observe(float64(len(batch)))
	d.logger.Debug(context.Background(), "flushing batch",
		slog.F("events", len(batch)),
		slog.F("subscribers", len(subs)),
	)

	for _, s := range subs {
		s.fn(batch)
	}
}
