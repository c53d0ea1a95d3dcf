package transport

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/omf/internal/shared"
)

// Preference constrains backend selection.
type Preference string

const (
	PreferAuto   Preference = "auto"
	PreferNative Preference = "native"
	PreferWeb    Preference = "web"
)

// ParsePreference accepts "auto", "native" or "web"; empty means auto.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PreferAuto, nil
	case PreferAuto, PreferNative, PreferWeb:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown transport backend %q", shared.ErrInvalidConfig, s)
	}
}

// Detect picks the backend for this process: the native backend when bridge is present and available, the web
// backend otherwise. A native preference without a usable bridge is an error.
func Detect(bridge Bridge, pref Preference, t Timeouts, logger *log.Logger) (Backend, error) {
	native := bridge != nil && bridge.Available()

	var backend Backend
	switch pref {
	case PreferWeb:
		backend = NewWebBackend(t, WithWebLogger(logger))
	case PreferNative:
		if !native {
			return nil, fmt.Errorf("%w: native transport requested but no bridge is available", shared.ErrInvalidConfig)
		}
		backend = NewNativeBackend(bridge, t, logger)
	case PreferAuto, "":
		if native {
			backend = NewNativeBackend(bridge, t, logger)
		} else {
			backend = NewWebBackend(t, WithWebLogger(logger))
		}
	default:
		return nil, fmt.Errorf("%w: unknown transport backend %q", shared.ErrInvalidConfig, pref)
	}

	shared.WithLogger(logger).Debug("transport selected", "backend", backend.Kind(), "preference", pref)
	return backend, nil
}
