package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/focusrank/focusrank/internal/models"
	"github.com/focusrank/focusrank/internal/service"
	"github.com/focusrank/focusrank/pkg/detector"
)

var (
	watchJSON bool
	watchLive bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print synthesized events from the window system",
	Long: `Track the window system without touching the database. Every flushed batch is
printed, or with --live every event as soon as it is synthesized. Resource
titles and mimetypes are printed as they are registered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := cliLogger(cfg, cmd.ErrOrStderr())

		source, err := detector.New(logger)
		if err != nil {
			return fmt.Errorf("failed to initialize window source: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := service.New(cfg, logger, service.Options{Source: source})
		p := &watchPrinter{out: cmd.OutOrStdout(), json: watchJSON}

		if watchLive {
			svc.Tracker.SubscribeEvents(p.event)
		} else {
			svc.Dispatcher.Subscribe(p.batch)
		}
		svc.Tracker.SubscribeMetadata(p.metadata)

		fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s, press Ctrl+C to stop\n", source.DisplayServer())
		return svc.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print JSON lines")
	watchCmd.Flags().BoolVar(&watchLive, "live", false, "Print each event when it is synthesized instead of per batch")
	rootCmd.AddCommand(watchCmd)
}

// watchPrinter serializes output from the tracker and dispatcher callbacks.
type watchPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
}

func (p *watchPrinter) batch(batch []models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = json.NewEncoder(p.out).Encode(batch)
		return
	}
	fmt.Fprintf(p.out, "--- batch of %d event(s)\n", len(batch))
	for _, e := range batch {
		p.line(e)
	}
}

func (p *watchPrinter) event(e models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = json.NewEncoder(p.out).Encode(e)
		return
	}
	p.line(e)
}

func (p *watchPrinter) metadata(m models.ResourceMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.json {
		_ = json.NewEncoder(p.out).Encode(m)
		return
	}
	if m.Title != "" {
		fmt.Fprintf(p.out, "  title     %s %q\n", m.URI, m.Title)
	}
	if m.Mimetype != "" {
		fmt.Fprintf(p.out, "  mimetype  %s %s\n", m.URI, m.Mimetype)
	}
}

func (p *watchPrinter) line(e models.Event) {
	fmt.Fprintf(p.out, "%s  %-11s %-20s %#-10x %s\n",
		e.Timestamp.Format("15:04:05.000"), e.Type, e.Application, e.WindowID, e.URI)
}
