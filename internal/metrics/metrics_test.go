package metrics_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"

	"github.com/focusrank/focusrank/internal/metrics"
	tu "github.com/focusrank/focusrank/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRegistryHasRuntimeCollectors(t *testing.T) {
	t.Parallel()

	families, err := metrics.NewRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}

func TestTextfileExporterRun(t *testing.T) {
	t.Parallel()

	ctx := tu.Context(t, tu.WaitShort)
	clock := quartz.NewMock(t)
	trap := clock.Trap().NewTicker("metrics", "textfile")
	defer trap.Close()

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "focusrank_test_total",
		Help: "Test counter.",
	})
	reg.MustRegister(counter)

	path := filepath.Join(t.TempDir(), "focusrank.prom")
	exporter := metrics.NewTextfileExporter(slogtest.Make(t, nil), reg, path, 15*time.Second, clock)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- exporter.Run(runCtx)
	}()

	trap.MustWait(ctx).MustRelease(ctx)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focusrank_test_total 0")

	counter.Add(3)
	clock.Advance(15 * time.Second).MustWait(ctx)
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), "focusrank_test_total 3")
	}, tu.WaitShort, 10*time.Millisecond)

	counter.Add(1)
	cancel()
	require.NoError(t, tu.RequireReceive(ctx, t, done))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focusrank_test_total 4")
}
