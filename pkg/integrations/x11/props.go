package x11

import (
	"encoding/binary"
	"mime"
	"net/url"
	"path"
	"slices"
	"strings"
)

// decodeWindows decodes a list of 32-bit window ids as stored in
// _NET_CLIENT_LIST.
func decodeWindows(data []byte) []uint32 {
	ids := make([]uint32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		if id := binary.LittleEndian.Uint32(data[i:]); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// diffWindows compares the known windows with the current list. Both
// results are sorted.
func diffWindows(known map[uint32]struct{}, current []uint32) (added, removed []uint32) {
	seen := make(map[uint32]struct{}, len(current))
	for _, id := range current {
		seen[id] = struct{}{}
		if _, ok := known[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range known {
		if _, ok := seen[id]; !ok {
			removed = append(removed, id)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// parseClass splits WM_CLASS into its instance and class parts.
func parseClass(data []byte) (instance, class string) {
	parts := strings.Split(trimNull(data), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}

// windowURI names the resource a window shows. Windows without a title
// have no resource.
func windowURI(app, title string) string {
	title = strings.TrimSpace(title)
	if app == "" || title == "" {
		return ""
	}
	return "window://" + url.PathEscape(app) + "/" + url.PathEscape(title)
}

// titleMimetype guesses the mimetype of the document named at the start of
// a window title, as in "report.pdf - Document Viewer". Returns "" when the
// title names no file with a known extension.
func titleMimetype(title string) string {
	name, _, _ := strings.Cut(title, " - ")
	name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "*"))
	if name == "" {
		return ""
	}
	ext := path.Ext(name)
	if len(ext) < 2 || strings.ContainsAny(ext, " /") {
		return ""
	}
	return mime.TypeByExtension(strings.ToLower(ext))
}

func trimNull(data []byte) string {
	return strings.TrimRight(string(data), "\x00")
}
