package api

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/render"
	"github.com/kathRex/kartbuilds/internal/store"
)

// ViewsHandler serves HTML fragments. Failures are rendered as a short
// message so the page can swap it in place of the fragment. Views only read:
// builds shown here are computed but never recorded.
type ViewsHandler struct {
	catalog  Catalog
	svc      *builds.Service
	renderer *render.Renderer
}

func NewViewsHandler(c Catalog, svc *builds.Service, r *render.Renderer) *ViewsHandler {
	return &ViewsHandler{catalog: c, svc: svc, renderer: r}
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

func (h *ViewsHandler) fail(w http.ResponseWriter, err error) {
	var buf bytes.Buffer
	buf.WriteString(`<p class="error">`)
	status := ErrorStatus(err)
	msg := "Error loading data."
	switch {
	case errors.Is(err, builds.ErrNoCombination):
		msg = "Could not determine a best build."
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		msg = err.Error()
	}
	buf.WriteString(template.HTMLEscapeString(msg))
	buf.WriteString(`</p>`)
	writeHTML(w, status, buf.Bytes())
}

func (h *ViewsHandler) StatTable(w http.ResponseWriter, r *http.Request) {
	cat, ok := store.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		writeHTML(w, http.StatusNotFound, []byte(`<p class="error">Unknown category.</p>`))
		return
	}
	table, err := h.catalog.StatTable(r.Context(), cat)
	if err != nil {
		h.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.renderer.StatTable(&buf, table); err != nil {
		h.fail(w, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

func (h *ViewsHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("playstyle")
	rec, err := h.svc.PreviewRecommend(r.Context(), key, r.URL.Query().Get("track"))
	if err != nil {
		h.fail(w, err)
		return
	}
	p, _ := h.svc.Playstyle(key)
	h.card(w, render.NewBuildCard(rec, p.Name, p.Description))
}

func (h *ViewsHandler) Best(w http.ResponseWriter, r *http.Request) {
	stat := r.URL.Query().Get("stat")
	rec, err := h.svc.PreviewBestForStat(r.Context(), stat, r.URL.Query().Get("track"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.card(w, render.NewBuildCard(rec, "Best "+render.Label(stat), ""))
}

func (h *ViewsHandler) card(w http.ResponseWriter, card render.BuildCard) {
	var buf bytes.Buffer
	if err := h.renderer.BuildCard(&buf, card); err != nil {
		h.fail(w, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

func (h *ViewsHandler) SlipperyTracks(w http.ResponseWriter, r *http.Request) {
	cols, err := h.catalog.TracksBySlipClass(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.renderer.SlipperyTable(&buf, cols); err != nil {
		h.fail(w, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

func (h *ViewsHandler) CupTracks(w http.ResponseWriter, r *http.Request) {
	refs, err := h.catalog.CupTracks(r.Context(), r.URL.Query().Get("cup"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.list(w, "cup-tracks", refs, "No tracks found for this cup.")
}

func (h *ViewsHandler) PlatformTracks(w http.ResponseWriter, r *http.Request) {
	refs, err := h.catalog.PlatformTracks(r.Context(), r.URL.Query().Get("platform"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.list(w, "platform-tracks", refs, "No tracks found for this platform.")
}

func (h *ViewsHandler) list(w http.ResponseWriter, class string, refs []store.NamedRef, empty string) {
	var buf bytes.Buffer
	if err := h.renderer.List(&buf, class, refs, empty); err != nil {
		h.fail(w, err)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}
