package models

import (
	"fmt"
	"time"
)

// EventType is the kind of resource usage an Event describes.
// The numeric values are part of the external notification contract.
type EventType uint32

const (
	Accessed    EventType = iota // resource was used, cumulative
	Opened                       // resource was opened in a window
	Modified                     // resource content changed
	Closed                       // resource was closed
	FocussedIn                   // resource received input focus
	FocussedOut                  // resource lost input focus

	LastEventType = FocussedOut
)

func (t EventType) String() string {
	switch t {
	case Accessed:
		return "Accessed"
	case Opened:
		return "Opened"
	case Modified:
		return "Modified"
	case Closed:
		return "Closed"
	case FocussedIn:
		return "FocussedIn"
	case FocussedOut:
		return "FocussedOut"
	default:
		return fmt.Sprintf("EventType(%d)", uint32(t))
	}
}

// Valid reports whether t is within the declared enumeration.
func (t EventType) Valid() bool {
	return t <= LastEventType
}

// IsFocus reports whether t is FocussedIn or FocussedOut.
func (t EventType) IsFocus() bool {
	return t == FocussedIn || t == FocussedOut
}

// Event describes one resource-usage occurrence
type Event struct {
	Application string    `json:"application" yaml:"application"`
	WindowID    uint32    `json:"window_id" yaml:"window_id"` // 0 means no window
	URI         string    `json:"uri" yaml:"uri"`
	Type        EventType `json:"type" yaml:"type"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(application string, windowID uint32, uri string, typ EventType) Event {
	return Event{
		Application: application,
		WindowID:    windowID,
		URI:         uri,
		Type:        typ,
		Timestamp:   time.Now(),
	}
}

// WithType returns a copy of e with a different type.
func (e Event) WithType(typ EventType) Event {
	e.Type = typ
	return e
}

// Equal compares every identifying field. Timestamp only orders events and
// is ignored, so a repeated notification compares equal to the original.
func (e Event) Equal(other Event) bool {
	return e.Application == other.Application &&
		e.WindowID == other.WindowID &&
		e.URI == other.URI &&
		e.Type == other.Type
}

// SameResource reports whether both events refer to the same (application, uri) pair.
func (e Event) SameResource(application, uri string) bool {
	return e.Application == application && e.URI == uri
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s, wid=%#x, %s)", e.Type, e.Application, e.WindowID, e.URI)
}
