package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/store"
)

type BuildsHandler struct {
	svc *builds.Service
}

func NewBuildsHandler(svc *builds.Service) *BuildsHandler {
	return &BuildsHandler{svc: svc}
}

func (h *BuildsHandler) Playstyles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Playstyles())
}

type RecommendRequest struct {
	Playstyle string `json:"playstyle"`
	Track     string `json:"track,omitempty"`
}

func (h *BuildsHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Playstyle == "" {
		writeError(w, http.StatusBadRequest, "playstyle is required")
		return
	}
	rec, err := h.svc.Recommend(r.Context(), req.Playstyle, req.Track)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type BestRequest struct {
	Stat  string `json:"stat"`
	Track string `json:"track,omitempty"`
}

func (h *BuildsHandler) Best(w http.ResponseWriter, r *http.Request) {
	var req BestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Stat == "" {
		writeError(w, http.StatusBadRequest, "stat is required")
		return
	}
	rec, err := h.svc.BestForStat(r.Context(), req.Stat, req.Track)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *BuildsHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var sel builds.Selection
	if err := decodeJSON(r, &sel); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.Calculate(r.Context(), sel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *BuildsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid build ID")
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "build not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// List returns recent builds, optionally filtered by ?mode= and ?objective=.
func (h *BuildsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.BuildFilter{Objective: q.Get("objective")}

	if v := q.Get("mode"); v != "" {
		mode := store.BuildMode(v)
		switch mode {
		case store.ModePlaystyle, store.ModeStat, store.ModeManual:
		default:
			writeError(w, http.StatusBadRequest, "invalid mode: "+v)
			return
		}
		filter.Mode = &mode
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	recs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if recs == nil {
		recs = []*store.BuildRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
