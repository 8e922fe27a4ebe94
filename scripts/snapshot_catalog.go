// snapshot_catalog.go dumps the component catalog, slip table and slippery
// tracks from a SPARQL endpoint as one JSON document.
//
// Usage:
//
//	go run scripts/snapshot_catalog.go -endpoint https://... -out catalog.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/kathRex/kartbuilds/internal/catalog"
	"github.com/kathRex/kartbuilds/internal/config"
	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

type snapshot struct {
	Endpoint       string                `json:"endpoint"`
	TakenAt        time.Time             `json:"taken_at"`
	Components     *store.ComponentSet   `json:"components"`
	SlipTable      store.SlipTable       `json:"slip_table"`
	SlipperyTracks []store.SlipperyTrack `json:"slippery_tracks"`
}

func main() {
	endpoint := flag.String("endpoint", config.DefaultEndpoint, "SPARQL endpoint")
	namespace := flag.String("namespace", config.DefaultNamespace, "ontology namespace")
	out := flag.String("out", "", "output file (default stdout)")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	q := sparql.NewHTTPClient(sparql.ClientConfig{Endpoint: *endpoint, RequestsPerSecond: 2, Burst: 4}, logger)
	cat := catalog.New(q, catalog.Config{Namespace: *namespace}, logger)

	set, err := cat.Components(ctx)
	if err != nil {
		log.Fatalf("components: %v", err)
	}
	table, err := cat.SlipTable(ctx)
	if err != nil {
		log.Fatalf("slip table: %v", err)
	}
	tracks, err := cat.SlipperyTracks(ctx)
	if err != nil {
		log.Fatalf("slippery tracks: %v", err)
	}

	snap := snapshot{
		Endpoint:       *endpoint,
		TakenAt:        time.Now().UTC(),
		Components:     set,
		SlipTable:      table,
		SlipperyTracks: tracks,
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		log.Fatalf("encode: %v", err)
	}
	log.Printf("snapshot: %d drivers, %d bodies, %d tires, %d gliders, %d slippery tracks",
		len(set.Drivers), len(set.Bodies), len(set.Tires), len(set.Gliders), len(tracks))
}
