package detector

import (
	"fmt"
	"os"

	"cdr.dev/slog/v3"

	"github.com/focusrank/focusrank/pkg/integrations/x11"
	"github.com/focusrank/focusrank/pkg/window"
)

// New returns the window source for the running session
func New(logger slog.Logger) (window.Source, error) {
	switch ds := DetectDisplayServer(); ds {
	case "x11":
		return x11.NewSource(logger)
	case "wayland":
		// XWayland clients still show up through $DISPLAY.
		if os.Getenv("DISPLAY") != "" {
			return x11.NewSource(logger)
		}
		return nil, fmt.Errorf("wayland sessions without XWayland are not supported")
	default:
		return nil, fmt.Errorf("no supported display server detected")
	}
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
