package window

import (
	"context"

	"github.com/focusrank/focusrank/internal/models"
)

// Info describes one top-level window
type Info struct {
	ID      uint32
	AppName string
	Title   string
	URI     string // resource shown in the window, derived from the title
}

// Sink receives raw window-system notifications. *tracker.Tracker implements it.
type Sink interface {
	// ReportEvent reports a resource event seen in a window (0 = no window)
	ReportEvent(application string, windowID uint32, uri string, eventType models.EventType)

	// WindowClosed reports that a window went away
	WindowClosed(windowID uint32)

	// FocusChanged reports that input focus moved to another window
	FocusChanged(windowID uint32)

	// RegisterResourceTitle publishes a human-readable title for uri
	RegisterResourceTitle(uri, title string)

	// RegisterResourceMimetype publishes the mimetype of uri
	RegisterResourceMimetype(uri, mimetype string)
}

// Source is the interface that all window-system integrations must satisfy
type Source interface {
	// Run forwards notifications to sink until ctx is done
	Run(ctx context.Context, sink Sink) error

	// ActiveWindow returns the window that currently has input focus
	ActiveWindow() (*Info, error)

	// DisplayServer returns the display server type ("x11")
	DisplayServer() string

	// Close cleans up any resources used by the source
	Close() error
}
