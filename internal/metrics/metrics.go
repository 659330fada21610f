// Package metrics owns the process registry and exports it for the node
// exporter textfile collector.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// TextfileExporter periodically writes a gatherer to a file.
type TextfileExporter struct {
	logger   slog.Logger
	gatherer prometheus.Gatherer
	path     string
	interval time.Duration
	clock    quartz.Clock
}

// NewTextfileExporter creates an exporter writing to path every interval.
// clock may be nil.
func NewTextfileExporter(logger slog.Logger, gatherer prometheus.Gatherer, path string, interval time.Duration, clock quartz.Clock) *TextfileExporter {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &TextfileExporter{
		logger:   logger.Named("metrics"),
		gatherer: gatherer,
		path:     path,
		interval: interval,
		clock:    clock,
	}
}

// Write exports the current values once.
func (e *TextfileExporter) Write() error {
	return prometheus.WriteToTextfile(e.path, e.gatherer)
}

// Run writes the file every interval until ctx is done, then writes it a
// final time. Write failures are logged and do not stop the loop.
func (e *TextfileExporter) Run(ctx context.Context) error {
	e.write(ctx)

	ticker := e.clock.NewTicker(e.interval, "metrics", "textfile")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.write(context.Background())
			return nil
		case <-ticker.C:
			e.write(ctx)
		}
	}
}

func (e *TextfileExporter) write(ctx context.Context) {
	if err := e.Write(); err != nil {
		e.logger.Warn(ctx, "failed to write metrics textfile",
			slog.F("path", e.path),
			slog.Error(err),
		)
	}
}
