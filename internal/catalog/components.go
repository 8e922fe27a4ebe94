package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

// Components fetches all four categories in parallel. It fails if any
// category fails, so the optimizer never sees a partial set.
func (c *Catalog) Components(ctx context.Context) (*store.ComponentSet, error) {
	return cached(ctx, c, sparql.KindComponents, "components", func(ctx context.Context) (*store.ComponentSet, error) {
		set := &store.ComponentSet{}
		targets := map[store.Category]*[]store.Entity{
			store.CategoryDriver: &set.Drivers,
			store.CategoryBody:   &set.Bodies,
			store.CategoryTire:   &set.Tires,
			store.CategoryGlider: &set.Gliders,
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, cat := range store.Categories {
			cat := cat
			dst := targets[cat]
			g.Go(func() error {
				entities, err := c.fetchCategory(gctx, cat)
				if err != nil {
					return err
				}
				*dst = entities
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		c.logger.Info("components loaded",
			"drivers", len(set.Drivers),
			"bodies", len(set.Bodies),
			"tires", len(set.Tires),
			"gliders", len(set.Gliders),
		)
		return set, nil
	})
}

func (c *Catalog) fetchCategory(ctx context.Context, cat store.Category) ([]store.Entity, error) {
	res, err := c.run(ctx, sparql.KindComponents, c.queries.ComponentsWithStats(string(cat)))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cat, err)
	}
	return groupEntities(res), nil
}

// groupEntities folds entity/stat rows into entities, keeping the order in
// which each entity URI first appears.
func groupEntities(res *sparql.Results) []store.Entity {
	var out []store.Entity
	index := make(map[string]int)

	for _, b := range res.Bindings {
		uri := b.Value("entityUri")
		if uri == "" {
			continue
		}
		i, ok := index[uri]
		if !ok {
			i = len(out)
			index[uri] = i
			out = append(out, store.Entity{URI: uri, Name: displayName(uri, b.Value("entityName")), Stats: store.Stats{}})
		}

		if !b.Has("statProperty") {
			continue
		}
		key, value, ok := parseStat(b.Value("statProperty"), b.Value("statValue"))
		if ok {
			out[i].Stats[key] = value
		}
	}
	return out
}

// parseStat turns a stat property IRI and its lexical value into a stat
// name and number. Non-numeric values and the IsDLC flag are rejected.
func parseStat(property, lexical string) (string, float64, bool) {
	key := sparql.LocalName(property)
	if key == "" || store.IsDLCKey(key) {
		return "", 0, false
	}
	v, ok := parseNumber(lexical)
	if !ok {
		return "", 0, false
	}
	return key, v, true
}

// parseNumber accepts finite decimal literals only.
func parseNumber(lexical string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(lexical), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Entities lists one category for a dropdown.
func (c *Catalog) Entities(ctx context.Context, cat store.Category) ([]store.NamedRef, error) {
	return cached(ctx, c, sparql.KindEntityList, "entities:"+string(cat), func(ctx context.Context) ([]store.NamedRef, error) {
		res, err := c.run(ctx, sparql.KindEntityList, c.queries.EntityList(string(cat)))
		if err != nil {
			return nil, err
		}
		return namedRefs(res, "entityUri", "entityName"), nil
	})
}

// ComponentStats loads the stats of a single component by URI. A URI that is
// not of category cat has no stats.
func (c *Catalog) ComponentStats(ctx context.Context, cat store.Category, uri string) (store.Stats, error) {
	if err := sparql.ValidateIRI(uri); err != nil {
		return nil, err
	}
	return cached(ctx, c, sparql.KindComponentStats, "stats:"+string(cat)+":"+uri, func(ctx context.Context) (store.Stats, error) {
		res, err := c.run(ctx, sparql.KindComponentStats, c.queries.ComponentStats(uri, string(cat)))
		if err != nil {
			return nil, err
		}
		stats := store.Stats{}
		for _, b := range res.Bindings {
			if key, v, ok := parseStat(b.Value("statProperty"), b.Value("statValue")); ok {
				stats[key] = v
			}
		}
		return stats, nil
	})
}

// StatRow is one entity in a stat table. Values line up with the table's
// columns and are nil where the entity lacks the stat.
type StatRow struct {
	URI    string     `json:"uri"`
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

type StatTable struct {
	Category store.Category `json:"category"`
	Columns  []string       `json:"columns"`
	Rows     []StatRow      `json:"rows"`
}

// StatTable lays out one category with rows sorted by name and columns set
// to the sorted union of stat names.
func (c *Catalog) StatTable(ctx context.Context, cat store.Category) (*StatTable, error) {
	set, err := c.Components(ctx)
	if err != nil {
		return nil, err
	}
	return BuildStatTable(cat, set.ByCategory(cat)), nil
}

// BuildStatTable arranges entities into a StatTable.
func BuildStatTable(cat store.Category, entities []store.Entity) *StatTable {
	colSet := make(map[string]struct{})
	for _, e := range entities {
		for k := range e.Stats {
			if !store.IsDLCKey(k) {
				colSet[k] = struct{}{}
			}
		}
	}
	columns := make([]string, 0, len(colSet))
	for k := range colSet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	sorted := make([]store.Entity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	rows := make([]StatRow, len(sorted))
	for i, e := range sorted {
		values := make([]*float64, len(columns))
		for j, col := range columns {
			if v, ok := e.Stats[col]; ok {
				values[j] = &v
			}
		}
		rows[i] = StatRow{URI: e.URI, Name: e.Name, Values: values}
	}
	return &StatTable{Category: cat, Columns: columns, Rows: rows}
}

func namedRefs(res *sparql.Results, uriVar, nameVar string) []store.NamedRef {
	refs := make([]store.NamedRef, 0, len(res.Bindings))
	for _, b := range res.Bindings {
		uri := b.Value(uriVar)
		if uri == "" {
			continue
		}
		refs = append(refs, store.NamedRef{URI: uri, Name: displayName(uri, b.Value(nameVar))})
	}
	return refs
}

// displayName prefers the label and falls back to the IRI's local name.
func displayName(uri, label string) string {
	if label == "" {
		return sparql.LocalName(uri)
	}
	return sparql.LabelName(label)
}
