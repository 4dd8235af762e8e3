package session

import (
	"context"
	"errors"
	"strings"

	"github.com/voiceflow/voiceflowd/internal/store"
)

// resolveMode picks the dictation mode for a session. Precedence: an
// explicit mode ID from the client, then the first mode whose
// auto_switch_apps substring-matches the reported frontmost app, then the
// default mode. A session can always proceed; with nothing configured a
// built-in all-stages-off mode applies.
func resolveMode(ctx context.Context, st store.Store, modeID int64, appName string) *store.Mode {
	if modeID != 0 {
		if m, err := st.Mode(ctx, modeID); err == nil {
			return m
		}
		// Unknown ID falls through to automatic resolution.
	}

	if appName != "" {
		if modes, err := st.Modes(ctx); err == nil {
			lowered := strings.ToLower(appName)
			for i := range modes {
				for _, app := range modes[i].AutoSwitchApps {
					if app != "" && strings.Contains(lowered, strings.ToLower(app)) {
						return &modes[i]
					}
				}
			}
		}
	}

	if m, err := st.DefaultMode(ctx); err == nil {
		return m
	} else if !errors.Is(err, store.ErrNotFound) {
		// Store trouble: dictation still works, just unprocessed.
		return &store.Mode{Name: "Passthrough"}
	}
	return &store.Mode{Name: "Passthrough"}
}
