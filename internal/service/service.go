// Package service wires the tracker, dispatcher and rankings cache into a
// running daemon.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/focusrank/focusrank/internal/config"
	"github.com/focusrank/focusrank/internal/dispatcher"
	"github.com/focusrank/focusrank/internal/metrics"
	"github.com/focusrank/focusrank/internal/models"
	"github.com/focusrank/focusrank/internal/rankings"
	"github.com/focusrank/focusrank/internal/tracker"
	"github.com/focusrank/focusrank/pkg/window"
)

// ScoreStore is the persisted score cache. *database.Repository implements it.
type ScoreStore interface {
	rankings.ScoreSource
	ScoresFor(ctx context.Context, activity string, uris []string) (map[string]float64, error)
}

// ErrorStore records integration failures. *database.Repository implements it.
type ErrorStore interface {
	CreateErrorLog(errorLog *models.ErrorLog) error
}

// Options holds the optional collaborators of a Service.
type Options struct {
	// Store seeds rankings and feeds them after each batch. Nil disables both.
	Store ScoreStore
	// Errors keeps window-source failures for `focusrank status`.
	Errors ErrorStore
	// Source delivers window notifications. Nil means events only arrive
	// through the Tracker API.
	Source window.Source
	// Clock drives the flush timer and the metrics exporter.
	Clock quartz.Clock
	// Registry receives all metrics. A fresh registry is created when nil.
	Registry *prometheus.Registry
}

// Service owns the running components.
type Service struct {
	cfg    *config.Config
	logger slog.Logger

	Registry   *prometheus.Registry
	Dispatcher *dispatcher.Dispatcher
	Tracker    *tracker.Tracker
	Rankings   *rankings.Cache

	source   window.Source
	errors   ErrorStore
	feeder   *ScoreFeeder
	exporter *metrics.TextfileExporter
}

// New builds the components. Nothing runs until Run.
func New(cfg *config.Config, logger slog.Logger, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Registry == nil {
		opts.Registry = metrics.NewRegistry()
	}

	s := &Service{
		cfg:      cfg,
		logger:   logger,
		Registry: opts.Registry,
		source:   opts.Source,
		errors:   opts.Errors,
	}

	s.Dispatcher = dispatcher.New(logger,
		dispatcher.WithClock(opts.Clock),
		dispatcher.WithFlushDelay(cfg.Tracker.FlushDelay),
		dispatcher.WithMetrics(dispatcher.NewMetrics(opts.Registry)),
	)
	s.Tracker = tracker.New(logger, s.Dispatcher,
		tracker.WithMetrics(tracker.NewMetrics(opts.Registry)),
	)

	s.Rankings = rankings.New(logger, opts.Store,
		rankings.WithLimit(cfg.Rankings.Limit),
		rankings.WithMetrics(rankings.NewMetrics(opts.Registry)),
	)

	if opts.Store != nil {
		s.feeder = NewScoreFeeder(logger, opts.Store, s.Rankings)
		s.Dispatcher.Subscribe(s.feeder.HandleBatch)
	}

	if cfg.Metrics.Textfile != "" {
		s.exporter = metrics.NewTextfileExporter(logger, opts.Registry, cfg.Metrics.Textfile, cfg.Metrics.Interval, opts.Clock)
	}

	return s
}

// Run serves until ctx is cancelled or the window source fails. Pending
// events are delivered before it returns.
func (s *Service) Run(ctx context.Context) error {
	s.Rankings.SetCurrentActivity(s.cfg.Tracker.Activity)

	s.logger.Info(ctx, "service started",
		slog.F("activity", s.cfg.Tracker.Activity),
		slog.F("flush_delay", s.cfg.Tracker.FlushDelay),
		slog.F("limit", s.cfg.Rankings.Limit),
		slog.F("window_source", s.source != nil),
	)

	eg, egCtx := errgroup.WithContext(ctx)

	if s.source != nil {
		eg.Go(func() error {
			err := s.source.Run(egCtx, s.Tracker)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			s.recordError(egCtx, err)
			return fmt.Errorf("window source: %w", err)
		})
	}

	if s.exporter != nil {
		eg.Go(func() error {
			return s.exporter.Run(egCtx)
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		return nil
	})

	err := eg.Wait()
	s.shutdown()

	if err != nil {
		return err
	}
	s.logger.Info(context.Background(), "service stopped")
	return nil
}

func (s *Service) shutdown() {
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close window source", slog.Error(err))
		}
	}
	// Delivers the last batch to the feeder before the cache goes away.
	s.Dispatcher.Close()
	s.Rankings.Close()
}

func (s *Service) recordError(ctx context.Context, err error) {
	s.logger.Error(ctx, "window source failed", slog.Error(err))
	if s.errors == nil {
		return
	}
	errLog := &models.ErrorLog{
		Timestamp: time.Now(),
		Source:    s.source.DisplayServer(),
		ErrorMsg:  err.Error(),
	}
	if err := s.errors.CreateErrorLog(errLog); err != nil {
		s.logger.Warn(ctx, "failed to store error log", slog.Error(err))
	}
}
