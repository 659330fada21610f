// Package logging builds the process logger from the log configuration.
package logging

import (
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"

	"github.com/focusrank/focusrank/internal/config"
)

// New returns a human-readable logger. In the foreground it writes to
// stderr; otherwise it writes to the rotated log file from cfg. The returned
// func closes the log file.
func New(cfg config.LogConfig, foreground bool, stderr io.Writer) (slog.Logger, func()) {
	var (
		w       io.Writer = stderr
		closeFn           = func() {}
	)
	if !foreground && cfg.File != "" {
		file := &closeFixer{w: &lumberjack.Logger{
			Filename: cfg.File,
			MaxSize:  5, // MB
			// Without this, rotated logs will never be deleted.
			MaxBackups: 1,
		}}
		w = file
		closeFn = func() { _ = file.Close() }
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.Make(sloghuman.Sink(w)).Leveled(level), closeFn
}

// closeFixer refuses writes after Close, since lumberjack re-opens the file
// on Write.
type closeFixer struct {
	w io.WriteCloser

	mu     sync.Mutex
	closed bool
}

func (c *closeFixer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.w.Close()
}

func (c *closeFixer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.w.Write(p)
}
