package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kathRex/kartbuilds/internal/builds"
	"github.com/kathRex/kartbuilds/internal/catalog"
	"github.com/kathRex/kartbuilds/internal/render"
	"github.com/kathRex/kartbuilds/internal/scoring"
	"github.com/kathRex/kartbuilds/internal/sparql"
	"github.com/kathRex/kartbuilds/internal/store"
)

const ns = "http://mariokart8deluxe.owl#"

// mockCatalog serves both the handlers and the builds service from a fixed
// component set.
type mockCatalog struct {
	set       *store.ComponentSet
	err       error
	refreshed int
}

func ent(name string, stats store.Stats) store.Entity {
	return store.Entity{URI: ns + name, Name: name, Stats: stats}
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{set: &store.ComponentSet{
		Drivers: []store.Entity{
			ent("Mario", store.Stats{"GroundSpeed": 3.75, "Weight": 3.5, "OffRoadTraction": 1.25}),
			ent("Bowser", store.Stats{"GroundSpeed": 4.75, "Weight": 4.75, "OffRoadTraction": 0.75}),
		},
		Bodies:  []store.Entity{ent("StandardKart", store.Stats{"OffRoadTraction": 0.5})},
		Tires:   []store.Entity{ent("Monster", store.Stats{"OffRoadTraction": 1.5, "Weight": 0.5})},
		Gliders: []store.Entity{ent("SuperGlider", store.Stats{})},
	}}
}

func (m *mockCatalog) Components(_ context.Context) (*store.ComponentSet, error) {
	return m.set, m.err
}
func (m *mockCatalog) ComponentStats(_ context.Context, _ store.Category, uri string) (store.Stats, error) {
	if err := sparql.ValidateIRI(uri); err != nil {
		return nil, err
	}
	return nil, nil
}
func (m *mockCatalog) TrackSlipperiness(_ context.Context, uri string) (string, error) {
	if uri == ns+"RainbowRoad" {
		return ns + "HeavySlip", nil
	}
	return "", nil
}
func (m *mockCatalog) SlipTable(_ context.Context) (store.SlipTable, error) {
	return store.SlipTable{ns + "HeavySlip": {3: 0.5}}, nil
}
func (m *mockCatalog) Refresh() int {
	m.refreshed++
	return 3
}
func (m *mockCatalog) Entities(_ context.Context, cat store.Category) ([]store.NamedRef, error) {
	if m.err != nil {
		return nil, m.err
	}
	var refs []store.NamedRef
	for _, e := range m.set.ByCategory(cat) {
		refs = append(refs, store.NamedRef{URI: e.URI, Name: e.Name})
	}
	return refs, nil
}
func (m *mockCatalog) StatTable(_ context.Context, cat store.Category) (*catalog.StatTable, error) {
	if m.err != nil {
		return nil, m.err
	}
	return catalog.BuildStatTable(cat, m.set.ByCategory(cat)), nil
}
func (m *mockCatalog) Cups(_ context.Context) ([]store.NamedRef, error) {
	return []store.NamedRef{{URI: ns + "MushroomCup", Name: "MushroomCup"}}, nil
}
func (m *mockCatalog) CupTracks(_ context.Context, cup string) ([]store.NamedRef, error) {
	if err := sparql.ValidateIRI(cup); err != nil {
		return nil, err
	}
	if cup != ns+"MushroomCup" {
		return nil, nil
	}
	return []store.NamedRef{{URI: ns + "MarioKartStadium", Name: "Mario Kart Stadium"}}, nil
}
func (m *mockCatalog) Platforms(_ context.Context) ([]store.NamedRef, error) { return nil, nil }
func (m *mockCatalog) PlatformTracks(_ context.Context, p string) ([]store.NamedRef, error) {
	return []store.NamedRef{{URI: ns + "DKJungle", Name: "DK Jungle"}}, nil
}
func (m *mockCatalog) SlipperyTracks(_ context.Context) ([]store.SlipperyTrack, error) {
	return []store.SlipperyTrack{{URI: ns + "RainbowRoad", Name: "Rainbow Road", ClassURI: ns + "HeavySlip", ClassName: "Heavy"}}, nil
}
func (m *mockCatalog) TracksBySlipClass(_ context.Context) (*store.SlipColumns, error) {
	return &store.SlipColumns{Light: []string{"Sherbet Land"}, Heavy: []string{"Rainbow Road", "Ice Ice Outpost"}}, nil
}

type mockBreaker struct{}

func (mockBreaker) BreakerStatus() sparql.BreakerStatus {
	return sparql.BreakerStatus{Name: "sparql", State: "closed", Requests: 4}
}

func setupTestRouter(t *testing.T) (http.Handler, *mockCatalog) {
	t.Helper()
	mc := newMockCatalog()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := builds.New(mc, store.NewMemoryStore(), nil, scoring.DefaultPlaystyles(), logger)
	rnd, err := render.New()
	require.NoError(t, err)
	router := NewRouter(mc, svc, rnd, mockBreaker{}, RouterConfig{AdminToken: "test-token"}, logger)
	return router, mc
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListComponents(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "GET", "/api/v1/components/drivers", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var refs []store.NamedRef
	require.NoError(t, json.NewDecoder(w.Body).Decode(&refs))
	require.Len(t, refs, 2)
	assert.Equal(t, "Mario", refs[0].Name)

	w = do(router, "GET", "/api/v1/components/karts", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComponentStatTable(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "GET", "/api/v1/components/Driver/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var table catalog.StatTable
	require.NoError(t, json.NewDecoder(w.Body).Decode(&table))
	assert.Equal(t, []string{"GroundSpeed", "OffRoadTraction", "Weight"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Bowser", table.Rows[0].Name)
}

func TestCatalogErrors(t *testing.T) {
	router, mc := setupTestRouter(t)

	mc.err = errors.New("endpoint down")
	w := do(router, "GET", "/api/v1/components/tires", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "endpoint down")

	mc.err = breakerOpenErr()
	w = do(router, "GET", "/api/v1/components/tires", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func breakerOpenErr() error {
	return errors.Join(errors.New("sparql entity_list"), gobreaker.ErrOpenState)
}

func TestKnownStatsAndPlaystyles(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "GET", "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats []string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Len(t, stats, 14)
	assert.Equal(t, "Acceleration", stats[0])

	w = do(router, "GET", "/api/v1/playstyles", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ps []scoring.Playstyle
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ps))
	require.Len(t, ps, 5)
	assert.Equal(t, "speedDemon", ps[0].Key)
}

func TestRecommendAndGet(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "POST", "/api/v1/builds/recommend", `{"playstyle":"unstoppableTank"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var rec store.BuildRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "Bowser", rec.Driver.Name)
	assert.Equal(t, store.ModePlaystyle, rec.Mode)

	w = do(router, "GET", "/api/v1/builds/"+rec.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got store.BuildRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, rec.ID, got.ID)

	w = do(router, "GET", "/api/v1/builds/6f0b5a2e-0000-4000-8000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, "GET", "/api/v1/builds/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendErrors(t *testing.T) {
	router, mc := setupTestRouter(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing playstyle", `{}`, http.StatusBadRequest},
		{"unknown playstyle", `{"playstyle":"moonwalker"}`, http.StatusBadRequest},
		{"bad track", `{"playstyle":"allRounder","track":"not an iri"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, "POST", "/api/v1/builds/recommend", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	mc.set.Gliders = nil
	w := do(router, "POST", "/api/v1/builds/recommend", `{"playstyle":"allRounder"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "could not determine a best build", body["error"])
}

func TestBestForStatWithGrip(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "POST", "/api/v1/builds/best", `{"stat":"OffRoadTraction","track":"`+ns+`RainbowRoad"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var rec store.BuildRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "Mario", rec.Driver.Name)
	assert.InDelta(t, 3.25, rec.Totals["OffRoadTraction"], 1e-9)
	require.NotNil(t, rec.Grip)
	assert.InDelta(t, 1.625, *rec.Grip, 1e-9)

	w = do(router, "POST", "/api/v1/builds/best", `{"stat":"Luck"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculate(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := `{"driver":"` + ns + `Mario","body":"` + ns + `StandardKart","tire":"` + ns + `Monster","glider":"` + ns + `SuperGlider"}`
	w := do(router, "POST", "/api/v1/builds/calculate", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var rec store.BuildRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, store.ModeManual, rec.Mode)
	assert.InDelta(t, 4.0, rec.Totals["Weight"], 1e-9)
	assert.Nil(t, rec.Score)

	w = do(router, "POST", "/api/v1/builds/calculate", `{"driver":"`+ns+`Mario"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	unknown := `{"driver":"` + ns + `Mario","body":"` + ns + `StandardKart","tire":"` + ns + `Monster","glider":"` + ns + `Umbrella"}`
	w = do(router, "POST", "/api/v1/builds/calculate", unknown)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBuilds(t *testing.T) {
	router, _ := setupTestRouter(t)

	do(router, "POST", "/api/v1/builds/recommend", `{"playstyle":"speedDemon"}`)
	do(router, "POST", "/api/v1/builds/best", `{"stat":"Weight"}`)

	w := do(router, "GET", "/api/v1/builds?mode=stat", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []store.BuildRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "Weight", recs[0].Objective)

	assert.Equal(t, http.StatusBadRequest, do(router, "GET", "/api/v1/builds?mode=random", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "GET", "/api/v1/builds?limit=-1", "").Code)
}

func TestListBuildsCapsLimit(t *testing.T) {
	router, _ := setupTestRouter(t)

	for i := 0; i < store.MaxListLimit+5; i++ {
		require.Equal(t, http.StatusCreated, do(router, "POST", "/api/v1/builds/best", `{"stat":"Weight"}`).Code)
	}

	w := do(router, "GET", "/api/v1/builds?limit=1000", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []store.BuildRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&recs))
	assert.Len(t, recs, store.MaxListLimit)

	w = do(router, "GET", "/api/v1/builds?limit=1000&offset=100", "")
	require.Equal(t, http.StatusOK, w.Code)
	recs = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&recs))
	assert.Len(t, recs, 5)
}

func TestTracksEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "GET", "/api/v1/cups", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "MushroomCup")

	w = do(router, "GET", "/api/v1/cups/tracks", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "GET", "/api/v1/cups/tracks?cup="+ns+"MushroomCup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mario Kart Stadium")

	w = do(router, "GET", "/api/v1/cups/tracks?cup=javascript:alert(1)", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, "GET", "/api/v1/platforms", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = do(router, "GET", "/api/v1/tracks/slippery", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"class":"Heavy"`)

	w = do(router, "GET", "/api/v1/tracks/slippery/table", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cols store.SlipColumns
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cols))
	assert.Equal(t, 2, cols.Rows())
}

func TestViews(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "GET", "/view/components/bodies/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "Body", doc.Find("thead th").First().Text())

	w = do(router, "GET", "/view/builds/recommend?playstyle=unstoppableTank&track="+ns+"RainbowRoad", "")
	require.Equal(t, http.StatusOK, w.Code)
	doc, err = goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "Unstoppable Tank", doc.Find("h3").Text())
	assert.Equal(t, "Bowser", doc.Find("#bestDriver").Text())
	assert.Equal(t, 1, doc.Find(".grip").Length())

	w = do(router, "GET", "/view/builds/best?stat=Weight", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Best Weight")

	w = do(router, "GET", "/view/builds/best?stat=Luck", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `class="error"`)

	w = do(router, "GET", "/view/tracks/slippery", "")
	require.Equal(t, http.StatusOK, w.Code)
	doc, err = goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find("tbody tr").Length())

	w = do(router, "GET", "/view/cups/tracks?cup="+ns+"FlowerCup", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No tracks found for this cup.")
}

func TestViewsDoNotRecordBuilds(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := do(router, "GET", "/view/builds/recommend?playstyle=speedDemon", "")
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	_, hasID := doc.Find("section").Attr("data-build-id")
	assert.False(t, hasID, "unrecorded builds carry no id")

	require.Equal(t, http.StatusOK, do(router, "GET", "/view/builds/best?stat=Weight", "").Code)

	w = do(router, "GET", "/api/v1/builds", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestAdminRoutes(t *testing.T) {
	router, mc := setupTestRouter(t)

	w := do(router, "POST", "/api/v1/admin/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("POST", "/api/v1/admin/refresh", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mc.refreshed)
	assert.Contains(t, w.Body.String(), `"entries_purged":3`)

	req = httptest.NewRequest("GET", "/api/v1/admin/sparql", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var status sparql.BreakerStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "closed", status.State)

	req = httptest.NewRequest("GET", "/api/v1/admin/builds/stats", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestMetricsRouter(t *testing.T) {
	router := NewMetricsRouter()

	w := do(router, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")

	w = do(router, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
