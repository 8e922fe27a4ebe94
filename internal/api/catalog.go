package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kathRex/kartbuilds/internal/catalog"
	"github.com/kathRex/kartbuilds/internal/store"
)

// Catalog is the read side the handlers list game data from.
type Catalog interface {
	Entities(ctx context.Context, cat store.Category) ([]store.NamedRef, error)
	StatTable(ctx context.Context, cat store.Category) (*catalog.StatTable, error)
	Cups(ctx context.Context) ([]store.NamedRef, error)
	CupTracks(ctx context.Context, cupURI string) ([]store.NamedRef, error)
	Platforms(ctx context.Context) ([]store.NamedRef, error)
	PlatformTracks(ctx context.Context, platformURI string) ([]store.NamedRef, error)
	SlipperyTracks(ctx context.Context) ([]store.SlipperyTrack, error)
	TracksBySlipClass(ctx context.Context) (*store.SlipColumns, error)
}

type ComponentsHandler struct {
	catalog Catalog
}

func NewComponentsHandler(c Catalog) *ComponentsHandler {
	return &ComponentsHandler{catalog: c}
}

func categoryParam(w http.ResponseWriter, r *http.Request) (store.Category, bool) {
	cat, ok := store.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category: "+chi.URLParam(r, "category"))
		return "", false
	}
	return cat, true
}

func (h *ComponentsHandler) List(w http.ResponseWriter, r *http.Request) {
	cat, ok := categoryParam(w, r)
	if !ok {
		return
	}
	refs, err := h.catalog.Entities(r.Context(), cat)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if refs == nil {
		refs = []store.NamedRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (h *ComponentsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	cat, ok := categoryParam(w, r)
	if !ok {
		return
	}
	table, err := h.catalog.StatTable(r.Context(), cat)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// KnownStats lists the stats a best build can be searched for.
func (h *ComponentsHandler) KnownStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, store.KnownStats)
}

type TracksHandler struct {
	catalog Catalog
}

func NewTracksHandler(c Catalog) *TracksHandler {
	return &TracksHandler{catalog: c}
}

func (h *TracksHandler) Cups(w http.ResponseWriter, r *http.Request) {
	h.refs(w, func() ([]store.NamedRef, error) { return h.catalog.Cups(r.Context()) })
}

func (h *TracksHandler) CupTracks(w http.ResponseWriter, r *http.Request) {
	cup := r.URL.Query().Get("cup")
	if cup == "" {
		writeError(w, http.StatusBadRequest, "cup is required")
		return
	}
	h.refs(w, func() ([]store.NamedRef, error) { return h.catalog.CupTracks(r.Context(), cup) })
}

func (h *TracksHandler) Platforms(w http.ResponseWriter, r *http.Request) {
	h.refs(w, func() ([]store.NamedRef, error) { return h.catalog.Platforms(r.Context()) })
}

func (h *TracksHandler) PlatformTracks(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		writeError(w, http.StatusBadRequest, "platform is required")
		return
	}
	h.refs(w, func() ([]store.NamedRef, error) { return h.catalog.PlatformTracks(r.Context(), platform) })
}

func (h *TracksHandler) Slippery(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.catalog.SlipperyTracks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tracks == nil {
		tracks = []store.SlipperyTrack{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (h *TracksHandler) SlipperyTable(w http.ResponseWriter, r *http.Request) {
	cols, err := h.catalog.TracksBySlipClass(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *TracksHandler) refs(w http.ResponseWriter, load func() ([]store.NamedRef, error)) {
	refs, err := load()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if refs == nil {
		refs = []store.NamedRef{}
	}
	writeJSON(w, http.StatusOK, refs)
}
