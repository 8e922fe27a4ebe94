package api

import (
	"net/http"

	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/sparql"
)

// BreakerReporter exposes the SPARQL circuit breaker.
type BreakerReporter interface {
	BreakerStatus() sparql.BreakerStatus
}

type AdminHandler struct {
	svc     *builds.Service
	breaker BreakerReporter
}

func NewAdminHandler(svc *builds.Service, b BreakerReporter) *AdminHandler {
	return &AdminHandler{svc: svc, breaker: b}
}

// Refresh purges the catalog cache so the next request reloads from the
// endpoint.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	n := h.svc.RefreshCatalog("admin")
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "refreshed", "entries_purged": n})
}

func (h *AdminHandler) SPARQL(w http.ResponseWriter, r *http.Request) {
	if h.breaker == nil {
		writeError(w, http.StatusNotFound, "no SPARQL client configured")
		return
	}
	writeJSON(w, http.StatusOK, h.breaker.BreakerStatus())
}

func (h *AdminHandler) Builds(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
