package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kathRex/kartbuilds/internal/api"
	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/catalog"
	"github.com/kathRex/kartbuilds/internal/config"
	"github.com/kathRex/kartbuilds/internal/hermes"
	"github.com/kathRex/kartbuilds/internal/render"
	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build store
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		db = pg
		logger.Info("connected to database")
	} else {
		db = store.NewMemoryStore()
		logger.Info("no database configured, keeping builds in memory")
	}
	defer db.Close()

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, "kartbuilds", logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// SPARQL endpoint and catalog
	sq := sparql.NewHTTPClient(sparql.ClientConfig{
		Endpoint:          cfg.SPARQL.Endpoint,
		Timeout:           cfg.SPARQLTimeout(),
		RequestsPerSecond: cfg.SPARQL.RequestsPerSecond,
		Burst:             cfg.SPARQL.Burst,
		BreakerFailures:   cfg.SPARQL.BreakerFailures,
		BreakerTimeout:    cfg.BreakerTimeout(),
	}, logger)
	cat := catalog.New(sq, catalog.Config{
		Namespace:    cfg.SPARQL.Namespace,
		CacheSize:    cfg.Cache.Size,
		CacheTTL:     cfg.CacheTTL(),
		FetchTimeout: cfg.CatalogFetchTimeout(),
	}, logger)

	playstyles, err := cfg.Playstyles()
	if err != nil {
		logger.Error("invalid playstyles", "error", err)
		os.Exit(1)
	}
	svc := builds.New(cat, db, hermesClient, playstyles, logger)

	if hermesClient != nil {
		err := hermesClient.Subscribe(hermes.SubjectCatalogRefreshRequest, func(_ string, data []byte) {
			var req hermes.CatalogRefreshRequest
			if err := json.Unmarshal(data, &req); err != nil {
				logger.Warn("bad catalog refresh request", "error", err)
				return
			}
			logger.Info("catalog refresh requested", "by", req.RequestedBy)
			svc.RefreshCatalog("hermes")
		})
		if err != nil {
			logger.Warn("failed to subscribe to refresh requests", "error", err)
		}
	}

	if cfg.Server.WarmCatalog {
		warmer := catalog.NewWarmer(cat, cfg.WarmInterval(), logger)
		warmer.Start(ctx)
		defer warmer.Stop()
	}

	rnd, err := render.New()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// API server
	router := api.NewRouter(cat, svc, rnd, sq, api.RouterConfig{
		AdminToken:         cfg.Server.AdminToken,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	}, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
