// Package x11 feeds window notifications from an X11 session into a
// window.Sink.
//
// The source listens for PropertyNotify events on the root window:
// _NET_ACTIVE_WINDOW changes become FocusChanged plus a FocussedIn for the
// resource shown in the new window, and windows that disappear from
// _NET_CLIENT_LIST become WindowClosed. Title changes of the active window
// move focus to the new resource. Window titles are registered as resource
// titles, and file names in them as mimetypes.
package x11

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/shirou/gopsutil/v4/process"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/internal/models"
	"github.com/focusrank/focusrank/pkg/window"
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_CLIENT_LIST",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// Source implements window.Source on top of an X connection
type Source struct {
	logger slog.Logger
	conn   *xgb.Conn
	root   xproto.Window
	atoms  map[string]xproto.Atom

	// Only touched by Run.
	known  map[uint32]struct{}
	active uint32
	apps   map[uint32]string
	uris   map[uint32]string

	closeOnce sync.Once
}

// NewSource connects to the display named by $DISPLAY
func NewSource(logger slog.Logger) (*Source, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	s := &Source{
		logger: logger.Named("x11"),
		conn:   conn,
		root:   setup.DefaultScreen(conn).Root,
		atoms:  make(map[string]xproto.Atom),
		known:  make(map[uint32]struct{}),
		apps:   make(map[uint32]string),
		uris:   make(map[uint32]string),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		s.atoms[name] = reply.Atom
	}

	return s, nil
}

// DisplayServer returns "x11"
func (s *Source) DisplayServer() string {
	return "x11"
}

// Close closes the X connection, which also ends Run
func (s *Source) Close() error {
	s.closeOnce.Do(s.conn.Close)
	return nil
}

// Run reports the current state, then forwards changes until ctx is done
// or the connection is closed.
func (s *Source) Run(ctx context.Context, sink window.Sink) error {
	if err := s.watch(s.root); err != nil {
		return fmt.Errorf("failed to watch root window: %w", err)
	}

	s.syncClientList(ctx, sink)
	s.syncActive(ctx, sink)

	events := make(chan xgb.Event)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			ev, err := s.conn.WaitForEvent()
			if ev == nil && err == nil {
				return
			}
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return ctx.Err()

		case err := <-errs:
			s.logger.Warn(ctx, "x11 protocol error", slog.Error(err))

		case ev, ok := <-events:
			if !ok {
				return errors.New("x11 connection closed")
			}
			if pn, isProperty := ev.(xproto.PropertyNotifyEvent); isProperty {
				s.handleProperty(ctx, sink, pn)
			}
		}
	}
}

func (s *Source) handleProperty(ctx context.Context, sink window.Sink, ev xproto.PropertyNotifyEvent) {
	switch {
	case ev.Window == s.root && ev.Atom == s.atoms["_NET_ACTIVE_WINDOW"]:
		s.syncActive(ctx, sink)

	case ev.Window == s.root && ev.Atom == s.atoms["_NET_CLIENT_LIST"]:
		s.syncClientList(ctx, sink)

	case uint32(ev.Window) == s.active && (ev.Atom == s.atoms["_NET_WM_NAME"] || ev.Atom == s.atoms["WM_NAME"]):
		s.syncTitle(ctx, sink)
	}
}

// syncActive moves focus to the window named by _NET_ACTIVE_WINDOW.
func (s *Source) syncActive(ctx context.Context, sink window.Sink) {
	wid := uint32(s.activeFromProperty())
	if wid == s.active {
		return
	}
	s.active = wid
	sink.FocusChanged(wid)

	if wid == 0 {
		return
	}

	if err := s.watch(xproto.Window(wid)); err != nil {
		s.logger.Debug(ctx, "failed to watch window", slog.F("window_id", wid), slog.Error(err))
	}

	info := s.describe(xproto.Window(wid))
	s.apps[wid] = info.AppName
	if info.URI == "" {
		return
	}
	s.uris[wid] = info.URI
	focusResource(sink, info)
}

// syncTitle reports a title change of the active window as a focus move
// between the resources the titles name.
func (s *Source) syncTitle(ctx context.Context, sink window.Sink) {
	wid := s.active
	app := s.apps[wid]
	title := s.windowName(xproto.Window(wid))
	uri := windowURI(app, title)

	prev := s.uris[wid]
	if uri == prev {
		return
	}

	s.logger.Debug(ctx, "title changed", slog.F("window_id", wid), slog.F("uri", uri))
	if prev != "" {
		sink.ReportEvent(app, wid, prev, models.FocussedOut)
	}
	if uri != "" {
		s.uris[wid] = uri
		focusResource(sink, window.Info{ID: wid, AppName: app, Title: title, URI: uri})
	} else {
		delete(s.uris, wid)
	}
}

// focusResource reports the resource shown in a window as focussed and
// publishes what its title tells about it.
func focusResource(sink window.Sink, info window.Info) {
	sink.ReportEvent(info.AppName, info.ID, info.URI, models.FocussedIn)
	sink.RegisterResourceTitle(info.URI, strings.TrimSpace(info.Title))
	if mimetype := titleMimetype(info.Title); mimetype != "" {
		sink.RegisterResourceMimetype(info.URI, mimetype)
	}
}

// syncClientList reports windows that left _NET_CLIENT_LIST as closed.
func (s *Source) syncClientList(ctx context.Context, sink window.Sink) {
	data, err := s.getProperty(s.root, s.atoms["_NET_CLIENT_LIST"], xproto.AtomWindow, 4096)
	if err != nil {
		s.logger.Debug(ctx, "failed to read client list", slog.Error(err))
		return
	}

	current := decodeWindows(data)
	_, removed := diffWindows(s.known, current)

	s.known = make(map[uint32]struct{}, len(current))
	for _, wid := range current {
		s.known[wid] = struct{}{}
	}

	for _, wid := range removed {
		delete(s.apps, wid)
		delete(s.uris, wid)
		sink.WindowClosed(wid)
	}
}

// ActiveWindow returns the window that currently has input focus
func (s *Source) ActiveWindow() (*window.Info, error) {
	wid, err := s.activeWindow()
	if err != nil {
		return nil, err
	}
	info := s.describe(wid)
	return &info, nil
}

func (s *Source) describe(wid xproto.Window) window.Info {
	app := s.appName(wid)
	title := s.windowName(wid)
	return window.Info{
		ID:      uint32(wid),
		AppName: app,
		Title:   title,
		URI:     windowURI(app, title),
	}
}

func (s *Source) watch(wid xproto.Window) error {
	return xproto.ChangeWindowAttributesChecked(s.conn, wid,
		xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange}).Check()
}

func (s *Source) getProperty(wid xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(s.conn, false, wid, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (s *Source) activeFromProperty() xproto.Window {
	data, err := s.getProperty(s.root, s.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

func (s *Source) activeFromInputFocus() xproto.Window {
	reply, err := xproto.GetInputFocus(s.conn).Reply()
	if err != nil {
		return 0
	}
	return reply.Focus
}

func (s *Source) topLevelParent(wid xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(s.conn, wid).Reply()
		if err != nil || reply.Parent == s.root || reply.Parent == 0 {
			return wid
		}
		wid = reply.Parent
	}
}

func (s *Source) hasName(wid xproto.Window) bool {
	data, _ := s.getProperty(wid, s.atoms["_NET_WM_NAME"], s.atoms["UTF8_STRING"], 1)
	if len(data) > 0 {
		return true
	}
	data, _ = s.getProperty(wid, s.atoms["WM_NAME"], xproto.AtomString, 1)
	return len(data) > 0
}

func (s *Source) activeWindow() (xproto.Window, error) {
	for i := 0; i < 5; i++ {
		wid := s.activeFromProperty()
		if wid != 0 && s.hasName(wid) {
			return wid, nil
		}

		wid = s.activeFromInputFocus()
		if wid != 0 && wid != s.root {
			topLevel := s.topLevelParent(wid)
			if topLevel != 0 && s.hasName(topLevel) {
				return topLevel, nil
			}
		}

		time.Sleep(20 * time.Millisecond)
	}

	return 0, errors.New("no active window found")
}

func (s *Source) windowName(wid xproto.Window) string {
	data, err := s.getProperty(wid, s.atoms["_NET_WM_NAME"], s.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return trimNull(data)
	}

	data, err = s.getProperty(wid, s.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return trimNull(data)
	}

	return ""
}

// appName prefers the WM_CLASS instance and falls back to the name of the
// owning process.
func (s *Source) appName(wid xproto.Window) string {
	data, err := s.getProperty(wid, s.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err == nil {
		if instance, _ := parseClass(data); instance != "" {
			return strings.ToLower(instance)
		}
	}

	data, err = s.getProperty(wid, s.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err == nil && len(data) >= 4 {
		if name := processName(int32(binary.LittleEndian.Uint32(data))); name != "" {
			return strings.ToLower(name)
		}
	}

	return "unknown"
}

func processName(pid int32) string {
	if pid <= 0 {
		return ""
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return ""
	}
	name, err := p.Name()
	if err != nil {
		return ""
	}
	return name
}
