package catalog

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

const slipLevelPrefix = "hasSlipLevel"

// SlipTable loads the grip modifiers of every slipperiness class, keyed by
// class URI. A class that fails to load is logged and left out; the call
// only fails when no class loads.
func (c *Catalog) SlipTable(ctx context.Context) (store.SlipTable, error) {
	return cached(ctx, c, sparql.KindSlipLevels, "slip_table", func(ctx context.Context) (store.SlipTable, error) {
		table := make(store.SlipTable)
		var mu sync.Mutex
		var lastErr error

		var g errgroup.Group
		for _, class := range SlipClasses {
			class := class
			g.Go(func() error {
				mods, err := c.slipLevels(ctx, class)
				if err != nil {
					c.logger.Warn("slip levels unavailable", "class", class, "error", err)
					mu.Lock()
					lastErr = err
					mu.Unlock()
					return nil
				}
				mu.Lock()
				table[c.queries.IRI(class)] = mods
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		if len(table) == 0 && lastErr != nil {
			return nil, lastErr
		}
		return table, nil
	})
}

func (c *Catalog) slipLevels(ctx context.Context, class string) (store.SlipModifiers, error) {
	res, err := c.run(ctx, sparql.KindSlipLevels, c.queries.SlipLevels(class))
	if err != nil {
		return nil, err
	}
	mods := make(store.SlipModifiers)
	for _, b := range res.Bindings {
		level, value, ok := parseSlipLevel(b.Value("prop"), b.Value("value"))
		if ok {
			mods[level] = value
		}
	}
	return mods, nil
}

// parseSlipLevel reads "...#hasSlipLevel7" with value "0.85" as (7, 0.85).
func parseSlipLevel(property, lexical string) (int, float64, bool) {
	local := property
	if i := strings.LastIndex(local, "#"); i >= 0 {
		local = local[i+1:]
	}
	i := strings.Index(local, slipLevelPrefix)
	if i < 0 {
		return 0, 0, false
	}
	level, err := strconv.Atoi(local[i+len(slipLevelPrefix):])
	if err != nil || level < 0 {
		return 0, 0, false
	}
	v, ok := parseNumber(lexical)
	if !ok {
		return 0, 0, false
	}
	return level, v, true
}

// TrackSlipperiness returns the slipperiness class URI of a track, or ""
// when the track has none.
func (c *Catalog) TrackSlipperiness(ctx context.Context, trackURI string) (string, error) {
	if err := sparql.ValidateIRI(trackURI); err != nil {
		return "", err
	}
	return cached(ctx, c, sparql.KindTrackSlipperiness, "track_slip:"+trackURI, func(ctx context.Context) (string, error) {
		res, err := c.run(ctx, sparql.KindTrackSlipperiness, c.queries.TrackSlipperiness(trackURI))
		if err != nil {
			return "", err
		}
		for _, b := range res.Bindings {
			if v := b.Value("slipperinessProfile"); v != "" {
				return v, nil
			}
		}
		return "", nil
	})
}

// SlipperyTracks lists every track with a slipperiness profile.
func (c *Catalog) SlipperyTracks(ctx context.Context) ([]store.SlipperyTrack, error) {
	return cached(ctx, c, sparql.KindSlipperyTracks, "slippery_tracks", func(ctx context.Context) ([]store.SlipperyTrack, error) {
		res, err := c.run(ctx, sparql.KindSlipperyTracks, c.queries.SlipperyTracks())
		if err != nil {
			return nil, err
		}
		tracks := make([]store.SlipperyTrack, 0, len(res.Bindings))
		for _, b := range res.Bindings {
			uri := b.Value("trackUri")
			if uri == "" {
				continue
			}
			class := b.Value("slipperinessProfile")
			tracks = append(tracks, store.SlipperyTrack{
				URI:       uri,
				Name:      displayName(uri, b.Value("trackName")),
				ClassURI:  class,
				ClassName: ClassLabel(class),
			})
		}
		return tracks, nil
	})
}

// ClassLabel shortens a slipperiness class IRI for display: LightSlip -> Light.
func ClassLabel(classURI string) string {
	return strings.TrimSuffix(sparql.LocalName(classURI), "Slip")
}

// TracksBySlipClass groups track names into light, medium and heavy columns.
func (c *Catalog) TracksBySlipClass(ctx context.Context) (*store.SlipColumns, error) {
	return cached(ctx, c, sparql.KindSlipClassTracks, "slip_columns", func(ctx context.Context) (*store.SlipColumns, error) {
		cols := &store.SlipColumns{}
		targets := map[string]*[]string{
			ClassLightSlip:  &cols.Light,
			ClassMediumSlip: &cols.Medium,
			ClassHeavySlip:  &cols.Heavy,
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, class := range SlipClasses {
			class := class
			dst := targets[class]
			g.Go(func() error {
				res, err := c.run(gctx, sparql.KindSlipClassTracks, c.queries.SlipClassTracks(class))
				if err != nil {
					return err
				}
				names := make([]string, 0, len(res.Bindings))
				for _, ref := range namedRefs(res, "trackUri", "trackName") {
					names = append(names, ref.Name)
				}
				*dst = names
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return cols, nil
	})
}

// Cups lists every cup.
func (c *Catalog) Cups(ctx context.Context) ([]store.NamedRef, error) {
	return cached(ctx, c, sparql.KindCups, "cups", func(ctx context.Context) ([]store.NamedRef, error) {
		res, err := c.run(ctx, sparql.KindCups, c.queries.Cups())
		if err != nil {
			return nil, err
		}
		return namedRefs(res, "entityUri", "entityName"), nil
	})
}

// CupTracks lists the tracks of one cup.
func (c *Catalog) CupTracks(ctx context.Context, cupURI string) ([]store.NamedRef, error) {
	if err := sparql.ValidateIRI(cupURI); err != nil {
		return nil, err
	}
	return cached(ctx, c, sparql.KindCupTracks, "cup_tracks:"+cupURI, func(ctx context.Context) ([]store.NamedRef, error) {
		res, err := c.run(ctx, sparql.KindCupTracks, c.queries.CupTracks(cupURI))
		if err != nil {
			return nil, err
		}
		return namedRefs(res, "trackUri", "trackName"), nil
	})
}

// Platforms lists every game platform.
func (c *Catalog) Platforms(ctx context.Context) ([]store.NamedRef, error) {
	return cached(ctx, c, sparql.KindPlatforms, "platforms", func(ctx context.Context) ([]store.NamedRef, error) {
		res, err := c.run(ctx, sparql.KindPlatforms, c.queries.Platforms())
		if err != nil {
			return nil, err
		}
		return namedRefs(res, "entityUri", "entityName"), nil
	})
}

// PlatformTracks lists the tracks that originate on one platform.
func (c *Catalog) PlatformTracks(ctx context.Context, platformURI string) ([]store.NamedRef, error) {
	if err := sparql.ValidateIRI(platformURI); err != nil {
		return nil, err
	}
	return cached(ctx, c, sparql.KindPlatformTracks, "platform_tracks:"+platformURI, func(ctx context.Context) ([]store.NamedRef, error) {
		res, err := c.run(ctx, sparql.KindPlatformTracks, c.queries.PlatformTracks(platformURI))
		if err != nil {
			return nil, err
		}
		return namedRefs(res, "trackUri", "trackName"), nil
	})
}
