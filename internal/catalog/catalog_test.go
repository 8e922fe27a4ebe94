package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

const ns = "http://mariokart8deluxe.owl#"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeQuerier answers queries by matching a substring of the query text.
type fakeQuerier struct {
	mu      sync.Mutex
	answers []answer
	calls   int32
	delay   time.Duration
}

type answer struct {
	contains string
	res      *sparql.Results
	err      error
}

func (f *fakeQuerier) on(contains string, res *sparql.Results, err error) *fakeQuerier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{contains: contains, res: res, err: err})
	return f
}

func (f *fakeQuerier) Query(ctx context.Context, kind, query string) (*sparql.Results, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.answers {
		if strings.Contains(query, a.contains) {
			return a.res, a.err
		}
	}
	return &sparql.Results{}, nil
}

func (f *fakeQuerier) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

func uriTerm(v string) sparql.Term { return sparql.Term{Type: "uri", Value: v} }
func lit(v string) sparql.Term     { return sparql.Term{Type: "literal", Value: v} }

func statRow(entity, name, prop, value string) sparql.Binding {
	b := sparql.Binding{
		"entityUri":  uriTerm(ns + entity),
		"entityName": lit(name),
	}
	if prop != "" {
		b["statProperty"] = uriTerm(ns + prop)
		b["statValue"] = lit(value)
	}
	return b
}

func results(rows ...sparql.Binding) *sparql.Results {
	return &sparql.Results{Bindings: rows}
}

func newTestCatalog(q sparql.Querier) *Catalog {
	return New(q, Config{Namespace: ns, CacheSize: 64, CacheTTL: time.Minute}, discardLogger())
}

func componentFixture() *fakeQuerier {
	return (&fakeQuerier{}).
		on("rdf:type mk:Driver .", results(
			statRow("Bowser", "Bowser", "hasWeight", "4.0"),
			statRow("Bowser", "Bowser", "hasGroundSpeed", "3.75"),
			statRow("Bowser", "Bowser", "isDLC", "false"),
			statRow("Mario", "Mario", "hasWeight", "3"),
			statRow("Mario", "Mario", "hasGroundSpeed", "n/a"),
			statRow("Toad", "Toad", "", ""),
		), nil).
		on("rdf:type mk:Body .", results(statRow("StandardKart", "Standard Kart", "hasWeight", "1")), nil).
		on("rdf:type mk:Tire .", results(statRow("Slick", "Slick", "hasGroundSpeed", "1.5")), nil).
		on("rdf:type mk:Glider .", results(statRow("SuperGlider", "Super Glider", "hasAirSpeed", "2")), nil)
}

func TestComponentsGroupsRows(t *testing.T) {
	c := newTestCatalog(componentFixture())

	set, err := c.Components(context.Background())
	require.NoError(t, err)

	require.Len(t, set.Drivers, 3)
	assert.Equal(t, "Bowser", set.Drivers[0].Name)
	assert.Equal(t, "Mario", set.Drivers[1].Name)
	assert.Equal(t, "Toad", set.Drivers[2].Name)

	bowser := set.Drivers[0]
	assert.Equal(t, ns+"Bowser", bowser.URI)
	assert.Equal(t, 4.0, bowser.Stats[store.StatWeight])
	assert.Equal(t, 3.75, bowser.Stats[store.StatGroundSpeed])
	assert.Len(t, bowser.Stats, 2, "isDLC must not become a stat")

	_, hasSpeed := set.Drivers[1].Stats[store.StatGroundSpeed]
	assert.False(t, hasSpeed, "unparsable values are dropped")
	assert.Empty(t, set.Drivers[2].Stats)

	require.Len(t, set.Bodies, 1)
	assert.Equal(t, "Standard Kart", set.Bodies[0].Name)
	require.Len(t, set.Gliders, 1)
	assert.Equal(t, 2.0, set.Gliders[0].Stats[store.StatAirSpeed])
}

func TestComponentsCachedAndRefreshed(t *testing.T) {
	q := componentFixture()
	c := newTestCatalog(q)
	ctx := context.Background()

	_, err := c.Components(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, q.callCount())

	_, err = c.Components(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, q.callCount(), "second call must be served from cache")

	assert.Equal(t, 1, c.Refresh())
	_, err = c.Components(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, q.callCount())
}

func TestComponentsConcurrentMissesShareFetch(t *testing.T) {
	q := componentFixture()
	q.delay = 20 * time.Millisecond
	c := newTestCatalog(q)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Components(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, q.callCount())
}

func TestComponentsFailsWhenAnyCategoryFails(t *testing.T) {
	q := componentFixture()
	boom := errors.New("endpoint down")
	q.answers = append([]answer{{contains: "rdf:type mk:Tire .", err: boom}}, q.answers...)
	c := newTestCatalog(q)

	_, err := c.Components(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Tire")
	assert.Equal(t, 0, c.Len(), "errors are not cached")
}

func TestStatTable(t *testing.T) {
	c := newTestCatalog(componentFixture())

	table, err := c.StatTable(context.Background(), store.CategoryDriver)
	require.NoError(t, err)
	assert.Equal(t, []string{store.StatGroundSpeed, store.StatWeight}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "Bowser", table.Rows[0].Name)
	require.NotNil(t, table.Rows[0].Values[0])
	assert.Equal(t, 3.75, *table.Rows[0].Values[0])
	assert.Nil(t, table.Rows[1].Values[0], "Mario has no parsable ground speed")
	assert.Nil(t, table.Rows[2].Values[1])
}

func TestBuildStatTableSortsByName(t *testing.T) {
	table := BuildStatTable(store.CategoryTire, []store.Entity{
		{Name: "Slick", Stats: store.Stats{"B": 1}},
		{Name: "Monster", Stats: store.Stats{"A": 2, store.StatIsDLC: 1}},
	})
	assert.Equal(t, []string{"A", "B"}, table.Columns)
	assert.Equal(t, "Monster", table.Rows[0].Name)
	assert.Equal(t, "Slick", table.Rows[1].Name)
}

func TestEntities(t *testing.T) {
	q := (&fakeQuerier{}).on("rdf:type mk:Glider .", results(
		sparql.Binding{"entityUri": uriTerm(ns + "Parafoil"), "entityName": lit("Parafoil")},
		sparql.Binding{"entityUri": uriTerm(ns + "CloudGlider")},
	), nil)
	c := newTestCatalog(q)

	refs, err := c.Entities(context.Background(), store.CategoryGlider)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "Parafoil", refs[0].Name)
	assert.Equal(t, "CloudGlider", refs[1].Name, "missing label falls back to the local name")
}

func TestComponentStats(t *testing.T) {
	q := (&fakeQuerier{}).on("<"+ns+"Mario>", results(
		sparql.Binding{"statProperty": uriTerm(ns + "hasWeight"), "statValue": lit("3.0")},
		sparql.Binding{"statProperty": uriTerm(ns + "hasMiniTurbo"), "statValue": lit("bad")},
	), nil)
	c := newTestCatalog(q)

	stats, err := c.ComponentStats(context.Background(), store.CategoryDriver, ns+"Mario")
	require.NoError(t, err)
	assert.Equal(t, store.Stats{store.StatWeight: 3}, stats)

	_, err = c.ComponentStats(context.Background(), store.CategoryDriver, "not an iri")
	assert.ErrorIs(t, err, sparql.ErrInvalidIRI)
}

func slipRow(level, value string) sparql.Binding {
	return sparql.Binding{"prop": uriTerm(ns + "hasSlipLevel" + level), "value": lit(value)}
}

func TestSlipTable(t *testing.T) {
	q := (&fakeQuerier{}).
		on("mk:LightSlip ?prop", results(slipRow("0", "1.0"), slipRow("8", "0.5"), slipRow("x", "0.1")), nil).
		on("mk:MediumSlip ?prop", nil, errors.New("timeout")).
		on("mk:HeavySlip ?prop", results(slipRow("20", "0.25"), slipRow("3", "")), nil)
	c := newTestCatalog(q)

	table, err := c.SlipTable(context.Background())
	require.NoError(t, err)
	assert.Len(t, table, 2, "failing class is omitted")
	assert.Equal(t, store.SlipModifiers{0: 1.0, 8: 0.5}, table[ns+"LightSlip"])
	assert.Equal(t, store.SlipModifiers{20: 0.25}, table[ns+"HeavySlip"])
	_, ok := table[ns+"MediumSlip"]
	assert.False(t, ok)
}

func TestSlipTableAllFail(t *testing.T) {
	q := (&fakeQuerier{}).on("hasSlipLevel", nil, errors.New("down"))
	c := newTestCatalog(q)

	_, err := c.SlipTable(context.Background())
	assert.Error(t, err)
}

func TestTrackSlipperiness(t *testing.T) {
	q := (&fakeQuerier{}).
		on("<"+ns+"DryDryDesert>", results(sparql.Binding{"slipperinessProfile": uriTerm(ns + "HeavySlip")}), nil)
	c := newTestCatalog(q)
	ctx := context.Background()

	class, err := c.TrackSlipperiness(ctx, ns+"DryDryDesert")
	require.NoError(t, err)
	assert.Equal(t, ns+"HeavySlip", class)

	class, err = c.TrackSlipperiness(ctx, ns+"MarioKartStadium")
	require.NoError(t, err)
	assert.Equal(t, "", class)
}

func TestSlipperyTracks(t *testing.T) {
	q := (&fakeQuerier{}).on("?trackUri mk:hasSlipperiness ?slipperinessProfile", results(
		sparql.Binding{
			"trackUri":            uriTerm(ns + "SherbetLand"),
			"trackName":           lit("Sherbet Land"),
			"slipperinessProfile": uriTerm(ns + "MediumSlip"),
		},
	), nil)
	c := newTestCatalog(q)

	tracks, err := c.SlipperyTracks(context.Background())
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Sherbet Land", tracks[0].Name)
	assert.Equal(t, "Medium", tracks[0].ClassName)
	assert.Equal(t, ns+"MediumSlip", tracks[0].ClassURI)
}

func trackRow(local, name string) sparql.Binding {
	return sparql.Binding{"trackUri": uriTerm(ns + local), "trackName": lit(name)}
}

func TestTracksBySlipClass(t *testing.T) {
	q := (&fakeQuerier{}).
		on("mk:hasSlipperiness mk:LightSlip", results(trackRow("A", "Alpha")), nil).
		on("mk:hasSlipperiness mk:MediumSlip", results(trackRow("B", "Beta"), trackRow("C", "Gamma")), nil).
		on("mk:hasSlipperiness mk:HeavySlip", results(), nil)
	c := newTestCatalog(q)

	cols, err := c.TracksBySlipClass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, cols.Light)
	assert.Equal(t, []string{"Beta", "Gamma"}, cols.Medium)
	assert.Empty(t, cols.Heavy)
	assert.Equal(t, 2, cols.Rows())
}

func TestCupsAndPlatforms(t *testing.T) {
	q := (&fakeQuerier{}).
		on("rdf:type mk:Cup .", results(sparql.Binding{"entityUri": uriTerm(ns + "MushroomCup"), "entityName": lit("Mushroom Cup")}), nil).
		on("mk:hasTrack", results(trackRow("MarioKartStadium", "Mario Kart Stadium")), nil).
		on("rdf:type mk:GamePlatform .", results(sparql.Binding{"entityUri": uriTerm(ns + "Wii"), "entityName": lit("Wii")}), nil).
		on("mk:hasOriginPlatform", results(trackRow("CoconutMall", "Coconut Mall")), nil)
	c := newTestCatalog(q)
	ctx := context.Background()

	cups, err := c.Cups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.NamedRef{{URI: ns + "MushroomCup", Name: "Mushroom Cup"}}, cups)

	tracks, err := c.CupTracks(ctx, ns+"MushroomCup")
	require.NoError(t, err)
	assert.Equal(t, "Mario Kart Stadium", tracks[0].Name)

	platforms, err := c.Platforms(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Wii", platforms[0].Name)

	tracks, err = c.PlatformTracks(ctx, ns+"Wii")
	require.NoError(t, err)
	assert.Equal(t, "Coconut Mall", tracks[0].Name)

	_, err = c.CupTracks(ctx, "javascript:alert(1)")
	assert.ErrorIs(t, err, sparql.ErrInvalidIRI)
	_, err = c.PlatformTracks(ctx, "http://x> } DROP")
	assert.ErrorIs(t, err, sparql.ErrInvalidIRI)
}

func TestClassLabel(t *testing.T) {
	assert.Equal(t, "Light", ClassLabel(ns+"LightSlip"))
	assert.Equal(t, "Heavy", ClassLabel(ns+"HeavySlip"))
	assert.Equal(t, "", ClassLabel(""))
}

func TestLabelsKeepSlashesAndHasPrefix(t *testing.T) {
	q := (&fakeQuerier{}).
		on("rdf:type mk:Driver .", results(statRow("DryBowser", "Dry Bowser/Skelett", "hasWeight", "4")), nil).
		on("rdf:type mk:Body .", results(statRow("Biddybuggy", "hasty Buggy", "", "")), nil)
	c := newTestCatalog(q)

	set, err := c.Components(context.Background())
	require.NoError(t, err)
	require.Len(t, set.Drivers, 1)
	assert.Equal(t, "Dry Bowser/Skelett", set.Drivers[0].Name)
	require.Len(t, set.Bodies, 1)
	assert.Equal(t, "hasty Buggy", set.Bodies[0].Name)
}

// blockingQuerier holds every query until release is closed or the query's
// context ends.
type blockingQuerier struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   int32
}

func newBlockingQuerier() *blockingQuerier {
	return &blockingQuerier{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingQuerier) Query(ctx context.Context, kind, query string) (*sparql.Results, error) {
	atomic.AddInt32(&b.calls, 1)
	b.once.Do(func() { close(b.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return results(sparql.Binding{"entityUri": uriTerm(ns + "Mario"), "entityName": lit("Mario")}), nil
	}
}

func TestSharedFetchSurvivesCancelledCaller(t *testing.T) {
	q := newBlockingQuerier()
	c := newTestCatalog(q)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Entities(ctxA, store.CategoryDriver)
		errA <- err
	}()
	<-q.started

	type result struct {
		refs []store.NamedRef
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		refs, err := c.Entities(context.Background(), store.CategoryDriver)
		resB <- result{refs, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(q.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, []store.NamedRef{{URI: ns + "Mario", Name: "Mario"}}, r.refs)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&q.calls))
	assert.Equal(t, 1, c.Len(), "shared result is cached")
}

func TestSharedFetchTimeout(t *testing.T) {
	q := newBlockingQuerier()
	c := New(q, Config{Namespace: ns, FetchTimeout: 20 * time.Millisecond}, discardLogger())

	_, err := c.Entities(context.Background(), store.CategoryDriver)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, c.Len())
}
