package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/render"
)

type RouterConfig struct {
	AdminToken         string
	RateLimitPerMinute int
}

func NewRouter(c Catalog, svc *builds.Service, rnd *render.Renderer, breaker BreakerReporter, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitPerMinute))

	components := NewComponentsHandler(c)
	tracks := NewTracksHandler(c)
	bh := NewBuildsHandler(svc)
	views := NewViewsHandler(c, svc, rnd)
	admin := NewAdminHandler(svc, breaker)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/components/{category}", components.List)
		r.Get("/components/{category}/stats", components.Stats)
		r.Get("/stats", components.KnownStats)
		r.Get("/playstyles", bh.Playstyles)

		r.Post("/builds/recommend", bh.Recommend)
		r.Post("/builds/best", bh.Best)
		r.Post("/builds/calculate", bh.Calculate)
		r.Get("/builds", bh.List)
		r.Get("/builds/{id}", bh.Get)

		r.Get("/cups", tracks.Cups)
		r.Get("/cups/tracks", tracks.CupTracks)
		r.Get("/platforms", tracks.Platforms)
		r.Get("/platforms/tracks", tracks.PlatformTracks)
		r.Get("/tracks/slippery", tracks.Slippery)
		r.Get("/tracks/slippery/table", tracks.SlipperyTable)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Post("/admin/refresh", admin.Refresh)
			r.Get("/admin/sparql", admin.SPARQL)
			r.Get("/admin/builds/stats", admin.Builds)
		})
	})

	r.Route("/view", func(r chi.Router) {
		r.Get("/components/{category}/stats", views.StatTable)
		r.Get("/builds/recommend", views.Recommend)
		r.Get("/builds/best", views.Best)
		r.Get("/tracks/slippery", views.SlipperyTracks)
		r.Get("/cups/tracks", views.CupTracks)
		r.Get("/platforms/tracks", views.PlatformTracks)
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
