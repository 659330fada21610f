package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"

	"github.com/focusrank/focusrank/internal/config"
	"github.com/focusrank/focusrank/internal/models"
	"github.com/focusrank/focusrank/internal/service"
	tu "github.com/focusrank/focusrank/internal/testutil"
	"github.com/focusrank/focusrank/pkg/window"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptSource plays a script against the sink and then idles until
// cancelled, or fails with err.
type scriptSource struct {
	script func(window.Sink)
	err    error
	played chan struct{}

	mu     sync.Mutex
	closed bool
}

func newScriptSource(script func(window.Sink)) *scriptSource {
	return &scriptSource{script: script, played: make(chan struct{})}
}

func (s *scriptSource) Run(ctx context.Context, sink window.Sink) error {
	if s.script != nil {
		s.script(sink)
	}
	close(s.played)
	if s.err != nil {
		return s.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *scriptSource) ActiveWindow() (*window.Info, error) { return nil, errors.New("none") }
func (s *scriptSource) DisplayServer() string               { return "script" }

func (s *scriptSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	scores    map[string]float64
	lookups   []string
	errorLogs []*models.ErrorLog
}

func (f *fakeStore) TopScores(context.Context, string, int) ([]models.RankedResource, error) {
	return nil, nil
}

func (f *fakeStore) ScoresFor(_ context.Context, activity string, uris []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, activity)
	out := make(map[string]float64)
	for _, uri := range uris {
		if s, ok := f.scores[uri]; ok {
			out[uri] = s
		}
	}
	return out, nil
}

func (f *fakeStore) CreateErrorLog(errorLog *models.ErrorLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorLogs = append(f.errorLogs, errorLog)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Tracker.Activity = "work"
	return cfg
}

func TestRunFeedsBatchesIntoRankings(t *testing.T) {
	t.Parallel()

	ctx := tu.Context(t, tu.WaitShort)
	store := &fakeStore{scores: map[string]float64{
		"window://editor/a": 5,
		"window://viewer/b": 2,
	}}
	source := newScriptSource(func(sink window.Sink) {
		sink.FocusChanged(7)
		sink.ReportEvent("editor", 7, "window://editor/a", models.FocussedIn)
		sink.ReportEvent("viewer", 8, "window://viewer/b", models.Opened)
	})

	svc := service.New(testConfig(), slogtest.Make(t, nil), service.Options{
		Store:    store,
		Errors:   store,
		Source:   source,
		Clock:    quartz.NewMock(t),
		Registry: prometheus.NewRegistry(),
	})

	var (
		mu      sync.Mutex
		batches [][]models.Event
	)
	svc.Dispatcher.Subscribe(func(batch []models.Event) {
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	tu.RequireReceive(ctx, t, source.played)
	cancel()
	require.NoError(t, tu.RequireReceive(ctx, t, done))

	mu.Lock()
	require.Len(t, batches, 1, "the pending events are flushed once on shutdown")
	var types []models.EventType
	for _, e := range batches[0] {
		types = append(types, e.Type)
	}
	mu.Unlock()
	assert.Equal(t, []models.EventType{
		models.Opened, models.FocussedIn,
		models.Opened, models.FocussedIn,
	}, types)

	assert.Equal(t, []string{"window://editor/a", "window://viewer/b"}, svc.Rankings.Query("work"))
	assert.Equal(t, "work", svc.Rankings.CurrentActivity())

	store.mu.Lock()
	assert.Equal(t, []string{"work"}, store.lookups)
	assert.Empty(t, store.errorLogs)
	store.mu.Unlock()

	source.mu.Lock()
	assert.True(t, source.closed)
	source.mu.Unlock()
}

func TestSourceFailureIsRecorded(t *testing.T) {
	t.Parallel()

	ctx := tu.Context(t, tu.WaitShort)
	store := &fakeStore{}
	source := newScriptSource(nil)
	source.err = errors.New("connection reset")

	svc := service.New(testConfig(), slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}), service.Options{
		Store:    store,
		Errors:   store,
		Source:   source,
		Clock:    quartz.NewMock(t),
		Registry: prometheus.NewRegistry(),
	})

	err := svc.Run(ctx)
	require.ErrorContains(t, err, "window source: connection reset")

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.errorLogs, 1)
	assert.Equal(t, "script", store.errorLogs[0].Source)
	assert.Equal(t, "connection reset", store.errorLogs[0].ErrorMsg)
}

func TestRunWithoutSourceOrStore(t *testing.T) {
	t.Parallel()

	ctx := tu.Context(t, tu.WaitShort)
	svc := service.New(testConfig(), slogtest.Make(t, nil), service.Options{
		Clock:    quartz.NewMock(t),
		Registry: prometheus.NewRegistry(),
	})

	var got []models.Event
	svc.Dispatcher.Subscribe(func(batch []models.Event) {
		got = append(got, batch...)
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	svc.Tracker.ReportEvent("shell", 0, "file:///notes.txt", models.Accessed)
	cancel()
	require.NoError(t, tu.RequireReceive(ctx, t, done))

	require.Len(t, got, 1)
	assert.Equal(t, models.Accessed, got[0].Type)
	assert.Empty(t, svc.Rankings.Query(""))
}

func TestMetricsTextfile(t *testing.T) {
	t.Parallel()

	ctx := tu.Context(t, tu.WaitShort)
	cfg := testConfig()
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "focusrank.prom")

	source := newScriptSource(func(sink window.Sink) {
		sink.ReportEvent("editor", 7, "window://editor/a", models.Opened)
	})
	svc := service.New(cfg, slogtest.Make(t, nil), service.Options{
		Source:   source,
		Clock:    quartz.NewMock(t),
		Registry: prometheus.NewRegistry(),
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	tu.RequireReceive(ctx, t, source.played)
	cancel()
	require.NoError(t, tu.RequireReceive(ctx, t, done))

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focusrank_dispatcher_events_enqueued_total 2")
	assert.Contains(t, string(data), "focusrank_tracker_events_synthesized_total")
}
