package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/catalog"
	"github.com/kathRex/kartbuilds/internal/config"
	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Configuration comes from KARTBUILDS_* variables; a bundled file can be
	// named with KARTBUILDS_CONFIG.
	cfg, err := config.Load(os.Getenv("KARTBUILDS_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

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

	// Warm invocations reuse the catalog cache; builds live only as long as
	// the execution environment.
	h := &handler{
		svc:    builds.New(cat, store.NewMemoryStore(), nil, playstyles, logger),
		logger: logger,
	}
	lambda.Start(h.handle)
}
