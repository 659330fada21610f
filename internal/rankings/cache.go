// Package rankings keeps, per activity, the K resources with the highest
// relevance score.
//
// Scores come from outside: a scoring collaborator calls Update with a
// freshly computed score, and the cache keeps a sorted, bounded list per
// activity. Updates that cannot make it into a full list are rejected
// against a cached threshold without touching the list. The first time an
// activity is seen, and whenever it becomes the current one, a background
// scan seeds its list from the persisted score store.
package rankings

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/internal/models"
)

// DefaultLimit is K, the number of resources kept per activity.
const DefaultLimit = 10

// ScoreSource supplies persisted scores for population scans.
type ScoreSource interface {
	// TopScores returns up to limit resources with a positive score for
	// activity, best first.
	TopScores(ctx context.Context, activity string, limit int) ([]models.RankedResource, error)
}

// Subscriber receives the new top list of an activity after every accepted
// update. It must not call back into the Cache.
type Subscriber func(activity string, uris []string)

// Option configures a Cache.
type Option func(*Cache)

// WithLimit sets K. Values below 1 are ignored.
func WithLimit(limit int) Option {
	return func(c *Cache) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

type subscription struct {
	id       uuid.UUID
	activity string // "" follows the current activity
	fn       Subscriber
}

// Cache holds the per-activity rankings.
type Cache struct {
	logger  slog.Logger
	limit   int
	source  ScoreSource
	metrics *Metrics

	mu         sync.Mutex
	current    string
	activities map[string]*ranking
	closed     bool

	subsMu sync.RWMutex
	subs   []subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a cache. source may be nil, in which case no population scans
// are run.
func New(logger slog.Logger, source ScoreSource, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		logger:     logger.Named("rankings"),
		limit:      DefaultLimit,
		source:     source,
		activities: make(map[string]*ranking),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Limit returns K.
func (c *Cache) Limit() int {
	return c.limit
}

// Update offers a new score for uri in activity. An empty activity means
// the current one. Empty uris and negative or NaN scores are ignored.
func (c *Cache) Update(activity, application, uri string, score float64) {
	if uri == "" || score < 0 || math.IsNaN(score) {
		c.metrics.Updates.WithLabelValues("invalid").Inc()
		c.logger.Debug(context.Background(), "rejecting score update",
			slog.F("activity", activity),
			slog.F("application", application),
			slog.F("uri", uri),
			slog.F("score", score),
		)
		return
	}

	activity, r := c.get(activity, true)
	c.update(activity, r, uri, score)
}

func (c *Cache) update(activity string, r *ranking, uri string, score float64) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	if !r.insert(uri, score, c.limit) {
		r.mu.Unlock()
		c.metrics.Updates.WithLabelValues("below_threshold").Inc()
		return
	}
	uris := r.uris()
	r.mu.Unlock()

	c.metrics.Updates.WithLabelValues("inserted").Inc()
	c.notify(activity, uris)
}

// Query returns the ranked uris of activity, best first.
func (c *Cache) Query(activity string) []string {
	_, r := c.get(activity, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uris()
}

// Results returns the ranked uris of activity together with their scores.
func (c *Cache) Results(activity string) []Result {
	_, r := c.get(activity, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.results)
}

// Threshold returns the lowest score an update must beat to enter a full
// list, or 0 while the list has room.
func (c *Cache) Threshold(activity string) float64 {
	_, r := c.get(activity, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threshold
}

// CurrentActivity returns what an empty activity resolves to.
func (c *Cache) CurrentActivity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetCurrentActivity changes the current activity and seeds its list from
// the score store. Subscribers following the current activity receive the
// list of the new one.
func (c *Cache) SetCurrentActivity(activity string) {
	c.mu.Lock()
	changed := activity != c.current
	c.current = activity

	r, ok := c.activities[activity]
	if !ok {
		r = &ranking{}
		c.activities[activity] = r
		changed = true
	}
	if changed {
		c.startScan(activity)
	}
	c.mu.Unlock()

	if changed {
		c.notifyFollowers(activity, r)
	}
}

// Activities returns the activities with a ranking, sorted.
func (c *Cache) Activities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.activities))
	for name := range c.activities {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Subscribe registers fn for updates of activity ("" follows the current
// activity) and immediately delivers the current list.
func (c *Cache) Subscribe(activity string, fn Subscriber) uuid.UUID {
	resolved, r := c.get(activity, true)

	id := uuid.New()
	c.subsMu.Lock()
	c.subs = append(c.subs, subscription{id: id, activity: activity, fn: fn})
	c.subsMu.Unlock()

	r.emitMu.Lock()
	r.mu.Lock()
	uris := r.uris()
	r.mu.Unlock()
	fn(resolved, uris)
	r.emitMu.Unlock()

	return id
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (c *Cache) Unsubscribe(id uuid.UUID) {
	c.subsMu.Lock()
	c.subs = slices.DeleteFunc(c.subs, func(s subscription) bool {
		return s.id == id
	})
	c.subsMu.Unlock()
}

// Populate seeds activity from the score store and waits for it to finish.
func (c *Cache) Populate(ctx context.Context, activity string) error {
	activity, r := c.get(activity, false)
	return c.scan(ctx, activity, r)
}

// Close cancels running scans and waits for them. Update and Query keep
// working afterwards, but no new scans are started.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// get resolves activity and returns its ranking, creating it on first use.
// A newly created ranking is seeded in the background when scan is set.
func (c *Cache) get(activity string, scan bool) (string, *ranking) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if activity == "" {
		activity = c.current
	}

	r, ok := c.activities[activity]
	if !ok {
		r = &ranking{}
		c.activities[activity] = r
		if scan {
			c.startScan(activity)
		}
	}
	return activity, r
}

// startScan runs a population scan on its own goroutine. c.mu must be held.
func (c *Cache) startScan(activity string) {
	if c.source == nil || c.closed {
		return
	}

	r := c.activities[activity]
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.scan(c.ctx, activity, r); err != nil && c.ctx.Err() == nil {
			c.logger.Warn(c.ctx, "population scan failed",
				slog.F("activity", activity),
				slog.Error(err),
			)
		}
	}()
}

func (c *Cache) scan(ctx context.Context, activity string, r *ranking) error {
	if c.source == nil {
		return nil
	}

	c.metrics.Scans.Inc()
	scores, err := c.source.TopScores(ctx, activity, c.limit)
	if err != nil {
		c.metrics.ScanErrors.Inc()
		return err
	}

	// Worst first: the newest of equal scores ranks first, so feeding in
	// reverse keeps the store's order among ties.
	for _, s := range slices.Backward(scores) {
		if s.URI == "" || s.Score <= 0 || math.IsNaN(s.Score) {
			continue
		}
		c.update(activity, r, s.URI, s.Score)
	}

	c.logger.Debug(ctx, "population scan done",
		slog.F("activity", activity),
		slog.F("loaded", len(scores)),
	)
	return nil
}

// notifyFollowers sends the list of activity to the subscribers of "".
func (c *Cache) notifyFollowers(activity string, r *ranking) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	uris := r.uris()
	r.mu.Unlock()

	c.subsMu.RLock()
	subs := slices.Clone(c.subs)
	c.subsMu.RUnlock()

	for _, s := range subs {
		if s.activity == "" {
			s.fn(activity, slices.Clone(uris))
		}
	}
}

func (c *Cache) notify(activity string, uris []string) {
	current := c.CurrentActivity()

	c.subsMu.RLock()
	subs := slices.Clone(c.subs)
	c.subsMu.RUnlock()

	for _, s := range subs {
		if s.activity == activity || (s.activity == "" && activity == current) {
			s.fn(activity, slices.Clone(uris))
		}
	}
}
