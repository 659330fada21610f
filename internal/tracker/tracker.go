// Package tracker turns raw window notifications into a consistent stream
// of resource events.
//
// Producers report what they see ("x was opened in window 7", "window 9
// got focus", "window 7 went away"), often incompletely. The tracker keeps
// per-window state and fills in the transitions nobody reported: an Opened
// before the first FocussedIn of a resource, a FocussedOut before a Closed,
// and FocussedOut/FocussedIn pairs when input focus moves between windows.
package tracker

import (
	"context"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/internal/models"
)

// Queue receives the synthesized events. *dispatcher.Dispatcher implements it.
type Queue interface {
	Enqueue(event models.Event)
	Prune(application, uri string) int
}

// MinTitleLength is the shortest resource title worth registering.
const MinTitleLength = 3

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// Tracker owns the window state table and the globally focussed window.
//
// Subscribers registered with SubscribeEvents and SubscribeMetadata are
// called synchronously and must not call back into the Tracker.
type Tracker struct {
	logger  slog.Logger
	queue   Queue
	metrics *Metrics

	// emitMu orders subscriber notifications the same way as the state
	// changes that produced them. It is taken before mu.
	emitMu sync.Mutex

	mu             sync.Mutex
	windows        map[uint32]*windowState
	focussedWindow uint32
	lastReported   *models.Event
	lastEmitted    *models.Event

	subsMu    sync.RWMutex
	eventSubs map[uuid.UUID]func(models.Event)
	metaSubs  map[uuid.UUID]func(models.ResourceMetadata)
}

// New creates a tracker that forwards events to queue.
func New(logger slog.Logger, queue Queue, opts ...Option) *Tracker {
	t := &Tracker{
		logger:    logger.Named("tracker"),
		queue:     queue,
		windows:   make(map[uint32]*windowState),
		eventSubs: make(map[uuid.UUID]func(models.Event)),
		metaSubs:  make(map[uuid.UUID]func(models.ResourceMetadata)),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(nil)
	}
	return t
}

// ReportEvent registers a raw notification. Events with an empty
// application or uri, or an unknown type, are ignored.
func (t *Tracker) ReportEvent(application string, windowID uint32, uri string, eventType models.EventType) {
	if application == "" || uri == "" || !eventType.Valid() {
		t.metrics.Rejected.Inc()
		t.logger.Debug(context.Background(), "rejecting malformed event",
			slog.F("application", application),
			slog.F("window_id", windowID),
			slog.F("uri", uri),
			slog.F("type", eventType.String()),
		)
		return
	}

	event := models.NewEvent(application, windowID, uri, eventType)

	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	emitted := t.process(event)
	t.mu.Unlock()

	t.notify(emitted)
}

// WindowClosed closes every resource the window registered and forgets
// the window. Unknown windows are ignored.
func (t *Tracker) WindowClosed(windowID uint32) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	w, ok := t.windows[windowID]
	if !ok {
		t.mu.Unlock()
		return
	}

	if t.focussedWindow == windowID {
		t.focussedWindow = 0
	}

	var emitted []models.Event
	for _, uri := range w.snapshot(windowID).Resources {
		emitted = append(emitted, t.process(models.NewEvent(w.application, windowID, uri, models.Closed))...)
	}

	delete(t.windows, windowID)
	t.metrics.Windows.Set(float64(len(t.windows)))
	t.mu.Unlock()

	t.logger.Debug(context.Background(), "window closed",
		slog.F("window_id", windowID),
		slog.F("closed_resources", len(emitted)),
	)
	t.notify(emitted)
}

// FocusChanged moves input focus to windowID. The resource focussed in the
// previous window loses focus and the one focussed in the new window gains it.
func (t *Tracker) FocusChanged(windowID uint32) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	if windowID == t.focussedWindow {
		t.mu.Unlock()
		return
	}

	var emitted []models.Event
	if w, ok := t.windows[t.focussedWindow]; ok && w.focussed != "" {
		t.synthesize(models.NewEvent(w.application, t.focussedWindow, w.focussed, models.FocussedOut), &emitted)
	}

	t.focussedWindow = windowID

	if w, ok := t.windows[windowID]; ok && w.focussed != "" {
		t.synthesize(models.NewEvent(w.application, windowID, w.focussed, models.FocussedIn), &emitted)
	}
	t.mu.Unlock()

	t.notify(emitted)
}

// RegisterResourceTitle publishes a title for uri. Titles shorter than
// MinTitleLength runes are ignored.
func (t *Tracker) RegisterResourceTitle(uri, title string) {
	if uri == "" || utf8.RuneCountInString(title) < MinTitleLength {
		return
	}
	t.notifyMetadata(models.ResourceMetadata{URI: uri, Title: title})
}

// RegisterResourceMimetype publishes the mimetype of uri.
func (t *Tracker) RegisterResourceMimetype(uri, mimetype string) {
	if uri == "" || mimetype == "" {
		return
	}
	t.notifyMetadata(models.ResourceMetadata{URI: uri, Mimetype: mimetype})
}

// SubscribeEvents registers fn for every emitted event, before batching.
func (t *Tracker) SubscribeEvents(fn func(models.Event)) uuid.UUID {
	id := uuid.New()
	t.subsMu.Lock()
	t.eventSubs[id] = fn
	t.subsMu.Unlock()
	return id
}

// SubscribeMetadata registers fn for title and mimetype registrations.
func (t *Tracker) SubscribeMetadata(fn func(models.ResourceMetadata)) uuid.UUID {
	id := uuid.New()
	t.subsMu.Lock()
	t.metaSubs[id] = fn
	t.subsMu.Unlock()
	return id
}

// Unsubscribe removes an event or metadata subscription.
func (t *Tracker) Unsubscribe(id uuid.UUID) {
	t.subsMu.Lock()
	delete(t.eventSubs, id)
	delete(t.metaSubs, id)
	t.subsMu.Unlock()
}

// FocussedWindow returns the window that currently has input focus, 0 if none.
func (t *Tracker) FocussedWindow() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focussedWindow
}

// Window returns a copy of the state of one window.
func (t *Tracker) Window(windowID uint32) (WindowInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[windowID]
	if !ok {
		return WindowInfo{}, false
	}
	return w.snapshot(windowID), true
}

// Windows returns the ids of all tracked windows in ascending order.
func (t *Tracker) Windows() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]uint32, 0, len(t.windows))
	for id := range t.windows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// process runs one accepted event through dedup, pruning and synthesis and
// returns what was emitted. t.mu must be held.
func (t *Tracker) process(event models.Event) []models.Event {
	if t.lastReported != nil && t.lastReported.Equal(event) {
		t.metrics.Duplicates.WithLabelValues("reported").Inc()
		return nil
	}
	t.lastReported = &event

	// A state-changing event supersedes whatever is still queued for the
	// same resource. Accessed events accumulate.
	if event.Type != models.Accessed {
		if n := t.queue.Prune(event.Application, event.URI); n > 0 &&
			t.lastEmitted != nil && t.lastEmitted.SameResource(event.Application, event.URI) {
			t.lastEmitted = nil
		}
	}

	var emitted []models.Event

	if event.WindowID == 0 {
		// Focus means nothing without a window.
		if !event.Type.IsFocus() {
			t.emit(event, &emitted)
		}
		return emitted
	}

	w, ok := t.windows[event.WindowID]
	if !ok {
		w = newWindowState(event.Application)
		t.windows[event.WindowID] = w
		t.metrics.Windows.Set(float64(len(t.windows)))
	}
	w.application = event.Application
	uri := event.URI

	switch event.Type {
	case models.Opened:
		w.resources[uri] = struct{}{}
		t.emit(event, &emitted)

		if w.focussed == "" {
			// The first resource of a window is assumed to have focus.
			w.focussed = uri
			t.synthesize(event.WithType(models.FocussedIn), &emitted)
		}

	case models.FocussedIn:
		if !w.has(uri) {
			w.resources[uri] = struct{}{}
			t.synthesize(event.WithType(models.Opened), &emitted)
		}

		w.focussed = uri
		t.emit(event, &emitted)

	case models.Closed:
		if w.focussed == uri {
			t.synthesize(event.WithType(models.FocussedOut), &emitted)
			w.focussed = ""
		}

		delete(w.resources, uri)
		t.emit(event, &emitted)

	case models.FocussedOut:
		if w.focussed == uri {
			w.focussed = ""
		}
		t.emit(event, &emitted)

	default:
		t.emit(event, &emitted)
	}

	return emitted
}

func (t *Tracker) synthesize(event models.Event, emitted *[]models.Event) {
	if t.emit(event, emitted) {
		t.metrics.Synthesized.WithLabelValues(event.Type.String()).Inc()
	}
}

// emit forwards event to the queue unless it repeats the previous emission.
// t.mu must be held.
func (t *Tracker) emit(event models.Event, emitted *[]models.Event) bool {
	if t.lastEmitted != nil && t.lastEmitted.Equal(event) {
		t.metrics.Duplicates.WithLabelValues("emitted").Inc()
		return false
	}
	t.lastEmitted = &event

	t.queue.Enqueue(event)
	t.metrics.Emitted.Inc()
	*emitted = append(*emitted, event)
	return true
}

func (t *Tracker) notify(events []models.Event) {
	if len(events) == 0 {
		return
	}

	t.subsMu.RLock()
	subs := make([]func(models.Event), 0, len(t.eventSubs))
	for _, fn := range t.eventSubs {
		subs = append(subs, fn)
	}
	t.subsMu.RUnlock()

	for _, event := range events {
		for _, fn := range subs {
			fn(event)
		}
	}
}

func (t *Tracker) notifyMetadata(meta models.ResourceMetadata) {
	t.subsMu.RLock()
	subs := make([]func(models.ResourceMetadata), 0, len(t.metaSubs))
	for _, fn := range t.metaSubs {
		subs = append(subs, fn)
	}
	t.subsMu.RUnlock()

	for _, fn := range subs {
		fn(meta)
	}
}
