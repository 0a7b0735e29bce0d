package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/store"
	"github.com/aussiebroadwan/taproom/pkg/httpx"
)

// LivezHandler reports process liveness.
func LivezHandler(startTime time.Time, version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": version,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
		})
	})
}

// ReadyzHandler reports readiness: the process is up and the database
// answers.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"reason": "database unreachable",
			})
			return
		}

		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": version,
			"uptime":  time.Since(startTime).Round(time.Second).String(),
		})
	})
}
