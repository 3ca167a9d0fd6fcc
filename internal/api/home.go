package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/catalog"
)

// HomeHandler serves the public homepage summary.
type HomeHandler struct {
	Catalog *catalog.Service
}

// Home handles GET /api/home.
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	home, err := h.Catalog.Home(r.Context())
	if err != nil {
		writeError(w, "building homepage", err)
		return
	}
	jsonResponse(w, http.StatusOK, home)
}

// healthHandler reports whether the database is reachable.
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
