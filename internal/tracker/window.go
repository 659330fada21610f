package tracker

import (
	"maps"
	"slices"
)

// windowState is what the tracker knows about one window.
type windowState struct {
	application string
	resources   map[string]struct{}
	focussed    string // "" when nothing in the window has focus
}

func newWindowState(application string) *windowState {
	return &windowState{
		application: application,
		resources:   make(map[string]struct{}),
	}
}

func (w *windowState) has(uri string) bool {
	_, ok := w.resources[uri]
	return ok
}

// WindowInfo is a read-only copy of a tracked window.
type WindowInfo struct {
	ID               uint32
	Application      string
	Resources        []string
	FocussedResource string
}

func (w *windowState) snapshot(id uint32) WindowInfo {
	return WindowInfo{
		ID:               id,
		Application:      w.application,
		Resources:        slices.Sorted(maps.Keys(w.resources)),
		FocussedResource: w.focussed,
	}
}
