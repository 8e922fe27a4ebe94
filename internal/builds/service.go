package builds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kathRex/kartbuilds/internal/hermes"
	"github.com/kathRex/kartbuilds/internal/metrics"
	"github.com/kathRex/kartbuilds/internal/scoring"
	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

var (
	ErrUnknownPlaystyle    = errors.New("unknown playstyle")
	ErrUnknownStat         = errors.New("unknown stat")
	ErrIncompleteSelection = errors.New("driver, body, tire and glider are all required")
	ErrUnknownComponent    = errors.New("unknown component")
	ErrNoCombination       = errors.New("could not determine a best build")
)

// Catalog is the slice of the catalog the service reads from.
type Catalog interface {
	Components(ctx context.Context) (*store.ComponentSet, error)
	ComponentStats(ctx context.Context, cat store.Category, uri string) (store.Stats, error)
	TrackSlipperiness(ctx context.Context, trackURI string) (string, error)
	SlipTable(ctx context.Context) (store.SlipTable, error)
	Refresh() int
}

// Selection is a user-picked build. Track is optional.
type Selection struct {
	Driver string `json:"driver"`
	Body   string `json:"body"`
	Tire   string `json:"tire"`
	Glider string `json:"glider"`
	Track  string `json:"track,omitempty"`
}

type Service struct {
	catalog    Catalog
	store      store.Store
	hermes     hermes.Client
	playstyles []scoring.Playstyle
	byKey      map[string]scoring.Playstyle
	logger     *slog.Logger
	now        func() time.Time
}

// New wires the service. h may be nil, in which case no events are sent.
func New(c Catalog, s store.Store, h hermes.Client, playstyles []scoring.Playstyle, logger *slog.Logger) *Service {
	byKey := make(map[string]scoring.Playstyle, len(playstyles))
	for _, p := range playstyles {
		byKey[p.Key] = p
	}
	return &Service{
		catalog:    c,
		store:      s,
		hermes:     h,
		playstyles: playstyles,
		byKey:      byKey,
		logger:     logger,
		now:        time.Now,
	}
}

// Playstyles returns the presets in display order.
func (s *Service) Playstyles() []scoring.Playstyle {
	out := make([]scoring.Playstyle, len(s.playstyles))
	copy(out, s.playstyles)
	return out
}

func (s *Service) Playstyle(key string) (scoring.Playstyle, bool) {
	p, ok := s.byKey[key]
	return p, ok
}

// Recommend finds the best build for a playstyle preset and records it.
func (s *Service) Recommend(ctx context.Context, playstyle, trackURI string) (*store.BuildRecord, error) {
	return s.recommend(ctx, playstyle, trackURI, true)
}

// PreviewRecommend computes the same build as Recommend without saving or
// publishing it. The returned record has no ID.
func (s *Service) PreviewRecommend(ctx context.Context, playstyle, trackURI string) (*store.BuildRecord, error) {
	return s.recommend(ctx, playstyle, trackURI, false)
}

// BestForStat finds the build with the highest total for one stat and
// records it.
func (s *Service) BestForStat(ctx context.Context, stat, trackURI string) (*store.BuildRecord, error) {
	return s.bestForStat(ctx, stat, trackURI, true)
}

// PreviewBestForStat is BestForStat without saving or publishing.
func (s *Service) PreviewBestForStat(ctx context.Context, stat, trackURI string) (*store.BuildRecord, error) {
	return s.bestForStat(ctx, stat, trackURI, false)
}

func (s *Service) recommend(ctx context.Context, playstyle, trackURI string, persist bool) (*store.BuildRecord, error) {
	p, ok := s.byKey[playstyle]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlaystyle, playstyle)
	}
	return s.optimize(ctx, store.ModePlaystyle, p.Key, p.Weights, trackURI, persist)
}

func (s *Service) bestForStat(ctx context.Context, stat, trackURI string, persist bool) (*store.BuildRecord, error) {
	if !store.IsKnownStat(stat) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStat, stat)
	}
	return s.optimize(ctx, store.ModeStat, stat, scoring.Attribute(stat), trackURI, persist)
}

func (s *Service) optimize(ctx context.Context, mode store.BuildMode, objective string, obj scoring.Objective, trackURI string, persist bool) (*store.BuildRecord, error) {
	if trackURI != "" {
		if err := sparql.ValidateIRI(trackURI); err != nil {
			return nil, err
		}
	}

	set, err := s.catalog.Components(ctx)
	if err != nil {
		return nil, fmt.Errorf("load components: %w", err)
	}

	start := time.Now()
	best := scoring.FindBest(set.Drivers, set.Bodies, set.Tires, set.Gliders, obj)
	evaluated := scoring.Evaluated(len(set.Drivers), len(set.Bodies), len(set.Tires), len(set.Gliders))
	metrics.ObserveOptimizer(string(mode), evaluated, best != nil, start)

	if best == nil {
		s.logger.Warn("no combination found", "mode", mode, "objective", objective, "evaluated", evaluated)
		return nil, ErrNoCombination
	}

	score := best.Score
	rec := &store.BuildRecord{
		Mode:      mode,
		Objective: objective,
		Driver:    ref(best.Driver),
		Body:      ref(best.Body),
		Tire:      ref(best.Tire),
		Glider:    ref(best.Glider),
		Totals:    best.Totals,
		Score:     &score,
		TrackURI:  trackURI,
	}
	rec.Grip = s.grip(ctx, trackURI, rec.Totals)

	s.logger.Info("best build computed",
		"mode", mode, "objective", objective, "evaluated", evaluated,
		"driver", rec.Driver.Name, "body", rec.Body.Name, "tire", rec.Tire.Name, "glider", rec.Glider.Name,
		"score", score, "persist", persist, "duration_ms", time.Since(start).Milliseconds())

	if !persist {
		return rec, nil
	}
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Calculate totals a user-selected build and adds grip when a track is given.
func (s *Service) Calculate(ctx context.Context, sel Selection) (*store.BuildRecord, error) {
	if sel.Driver == "" || sel.Body == "" || sel.Tire == "" || sel.Glider == "" {
		return nil, ErrIncompleteSelection
	}
	if sel.Track != "" {
		if err := sparql.ValidateIRI(sel.Track); err != nil {
			return nil, err
		}
	}

	set, err := s.catalog.Components(ctx)
	if err != nil {
		s.logger.Warn("component catalog unavailable, loading stats per component", "error", err)
		set = &store.ComponentSet{}
	}

	picks := [4]struct {
		cat store.Category
		uri string
	}{
		{store.CategoryDriver, sel.Driver},
		{store.CategoryBody, sel.Body},
		{store.CategoryTire, sel.Tire},
		{store.CategoryGlider, sel.Glider},
	}
	var entities [4]store.Entity
	for i, p := range picks {
		e, err := s.resolve(ctx, set, p.cat, p.uri)
		if err != nil {
			return nil, err
		}
		entities[i] = e
	}

	rec := &store.BuildRecord{
		Mode:     store.ModeManual,
		Driver:   ref(entities[0]),
		Body:     ref(entities[1]),
		Tire:     ref(entities[2]),
		Glider:   ref(entities[3]),
		Totals:   scoring.Aggregate(entities[:]...),
		TrackURI: sel.Track,
	}
	rec.Grip = s.grip(ctx, sel.Track, rec.Totals)

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// resolve finds uri in the loaded set, falling back to a direct stats
// lookup for components the set does not hold. Both paths require uri to be
// of category cat.
func (s *Service) resolve(ctx context.Context, set *store.ComponentSet, cat store.Category, uri string) (store.Entity, error) {
	if e, ok := set.Find(cat, uri); ok {
		return e, nil
	}
	for _, other := range store.Categories {
		if _, ok := set.Find(other, uri); ok && other != cat {
			return store.Entity{}, fmt.Errorf("%w: %s is a %s, not a %s", ErrUnknownComponent, uri, other, cat)
		}
	}
	stats, err := s.catalog.ComponentStats(ctx, cat, uri)
	if err != nil {
		if errors.Is(err, sparql.ErrInvalidIRI) {
			return store.Entity{}, err
		}
		return store.Entity{}, fmt.Errorf("load %s stats: %w", cat, err)
	}
	if len(stats) == 0 {
		return store.Entity{}, fmt.Errorf("%w: %s %s", ErrUnknownComponent, cat, uri)
	}
	return store.Entity{URI: uri, Name: sparql.LocalName(uri), Stats: stats}, nil
}

// grip returns the terrain-adjusted off-road traction on trackURI, or nil
// when the track, its slipperiness class or the level modifier is missing.
func (s *Service) grip(ctx context.Context, trackURI string, totals store.Stats) *float64 {
	if trackURI == "" {
		return nil
	}
	class, err := s.catalog.TrackSlipperiness(ctx, trackURI)
	if err != nil {
		s.logger.Warn("track slipperiness unavailable", "track", trackURI, "error", err)
		return nil
	}
	if class == "" {
		return nil
	}
	table, err := s.catalog.SlipTable(ctx)
	if err != nil {
		s.logger.Warn("slip table unavailable", "error", err)
		return nil
	}
	mods, ok := table[class]
	if !ok {
		return nil
	}
	g, ok := scoring.AdjustedGrip(totals.Get(store.StatOffRoadTraction), mods)
	if !ok {
		return nil
	}
	return &g
}

func (s *Service) save(ctx context.Context, rec *store.BuildRecord) error {
	rec.ID = uuid.New()
	rec.CreatedAt = s.now().UTC()
	if err := s.store.CreateBuild(ctx, rec); err != nil {
		return fmt.Errorf("save build: %w", err)
	}
	s.publishComputed(rec)
	return nil
}

func (s *Service) publishComputed(rec *store.BuildRecord) {
	if s.hermes == nil {
		return
	}
	evt := hermes.BuildComputedEvent{
		BuildID:   rec.ID.String(),
		Mode:      string(rec.Mode),
		Objective: rec.Objective,
		Driver:    rec.Driver.Name,
		Body:      rec.Body.Name,
		Tire:      rec.Tire.Name,
		Glider:    rec.Glider.Name,
		Score:     rec.Score,
		Grip:      rec.Grip,
		Totals:    rec.Totals,
		Timestamp: rec.CreatedAt,
	}
	if err := s.hermes.Publish(hermes.SubjectBuildComputed(evt.BuildID), evt); err != nil {
		s.logger.Warn("failed to publish build event", "build_id", evt.BuildID, "error", err)
	}
}

// Get returns a stored build, or nil when id is unknown.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.BuildRecord, error) {
	return s.store.GetBuild(ctx, id)
}

func (s *Service) List(ctx context.Context, filter store.BuildFilter) ([]*store.BuildRecord, error) {
	return s.store.ListBuilds(ctx, filter)
}

func (s *Service) Stats(ctx context.Context) (*store.BuildStats, error) {
	return s.store.GetBuildStats(ctx)
}

// RefreshCatalog drops cached catalog data and announces it. source names
// what asked for the refresh (admin, hermes).
func (s *Service) RefreshCatalog(source string) int {
	n := s.catalog.Refresh()
	if s.hermes != nil {
		evt := hermes.CatalogRefreshedEvent{Entries: n, Source: source, Timestamp: s.now().UTC()}
		if err := s.hermes.Publish(hermes.SubjectCatalogRefreshed, evt); err != nil {
			s.logger.Warn("failed to publish catalog refresh", "error", err)
		}
	}
	return n
}

func ref(e store.Entity) store.NamedRef {
	return store.NamedRef{URI: e.URI, Name: e.Name}
}
