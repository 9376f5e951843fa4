package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soumitsalman/insightsack/sdk"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

var testRecords = []sdk.Record{
	{Sector: "Energy", Topic: "oil", Intensity: fptr(60), Likelihood: fptr(3), StartYear: iptr(2017), Region: "Northern America", Pestle: "Economic", Title: "Oil output growth"},
	{Sector: "Energy", Topic: "gas", Intensity: fptr(80), Likelihood: fptr(4), StartYear: iptr(2016), Region: "Western Asia", Pestle: "Economic", Title: "Supply crisis looms"},
	{Sector: "Retail", Topic: "consumption", Intensity: fptr(40), Likelihood: fptr(2), Region: "Europe", Pestle: "Social", Title: "Quarterly update"},
}

// brokenRepo fails every stats query.
type brokenRepo struct {
	*sdk.MemoryRepository
}

func (brokenRepo) Stats(ctx context.Context, f *sdk.FilterSet) (*sdk.Stats, error) {
	return nil, errors.New("connection reset")
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.Mode = gin.TestMode
	cfg.Server.CorsOrigin = "http://localhost:3000"
	return cfg
}

func newTestRouter(t *testing.T, repo sdk.Repository) *gin.Engine {
	t.Helper()
	dashboard, err := sdk.NewDashboard(repo, sdk.WithCache(0, 0))
	require.NoError(t, err)
	return newServer(dashboard, testConfig())
}

func loadedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	repo := sdk.NewMemoryRepository()
	require.NoError(t, repo.Replace(context.Background(), testRecords))
	return newTestRouter(t, repo)
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	w := get(newTestRouter(t, sdk.NewMemoryRepository()), "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, w.Header().Get(_REQUEST_ID_HEADER))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
}

func TestStats_EmptyStore(t *testing.T) {
	w := get(newTestRouter(t, sdk.NewMemoryRepository()), "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]float64](t, w)
	assert.Equal(t, map[string]float64{"avgIntensity": 0, "avgLikelihood": 0, "avgRelevance": 0, "totalRecords": 0}, body)
}

func TestSectorAnalysis(t *testing.T) {
	w := get(loadedRouter(t), "/api/sector-analysis")
	require.Equal(t, http.StatusOK, w.Code)

	sectors := decode[[]sdk.SectorSummary](t, w)
	require.Len(t, sectors, 2)
	assert.Equal(t, "Energy", *sectors[0].Sector)
	assert.Equal(t, 70.0, sectors[0].AvgIntensity)
	assert.Equal(t, int64(2), sectors[0].Count)
	assert.Equal(t, "Retail", *sectors[1].Sector)
	assert.Equal(t, 40.0, sectors[1].AvgIntensity)
}

func TestData_FiltersAndLimit(t *testing.T) {
	router := loadedRouter(t)

	w := get(router, "/api/data?intensity_range=50-100")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]sdk.Record](t, w), 2)

	w = get(router, "/api/data?sector=energy&limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	records := decode[[]sdk.Record](t, w)
	require.Len(t, records, 1)
	assert.Equal(t, "oil", records[0].Topic)

	w = get(router, "/api/data?limit=many")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `invalid limit "many": expected a whole number`, decode[map[string]string](t, w)["error"])

	w = get(router, "/api/data?intensity_range=-5-70")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]sdk.Record](t, w), 2)
}

func TestFilteredViews(t *testing.T) {
	router := loadedRouter(t)
	for _, path := range []string{
		"/api/topic-trends",
		"/api/pestle-analysis",
		"/api/swot-analysis",
		"/api/intensity-distribution",
		"/api/region-distribution",
		"/api/year-analysis",
	} {
		w := get(router, path+"?sector=Energy")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, decode[[]map[string]any](t, w), path)
	}
}

func TestSwotFilter(t *testing.T) {
	w := get(loadedRouter(t), "/api/data?swot=threat")
	require.Equal(t, http.StatusOK, w.Code)

	records := decode[[]sdk.Record](t, w)
	require.Len(t, records, 1)
	assert.Equal(t, "gas", records[0].Topic)
}

func TestMalformedFilterIsBadRequest(t *testing.T) {
	router := loadedRouter(t)
	for _, target := range []string{
		"/api/stats?intensity_range=abc",
		"/api/sector-analysis?end_year=soon",
		"/api/data?swot=luck",
	} {
		w := get(router, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, decode[map[string]string](t, w)["error"], "invalid", target)
	}
}

func TestDistinctListings(t *testing.T) {
	router := loadedRouter(t)

	w := get(router, "/api/sectors")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Energy", "Retail"}, decode[[]string](t, w))

	w = get(router, "/api/cities")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{}, decode[[]string](t, w))
}

func TestUnknownRoute(t *testing.T) {
	w := get(loadedRouter(t), "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "not found")
}

func TestStoreFailureIsServerError(t *testing.T) {
	w := get(newTestRouter(t, brokenRepo{sdk.NewMemoryRepository()}), "/api/stats")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "connection reset", decode[map[string]string](t, w)["error"])
}

func preflight(router http.Handler, origin string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/stats", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	router.ServeHTTP(w, req)
	return w
}

func TestCorsPreflight(t *testing.T) {
	w := preflight(loadedRouter(t), "http://localhost:3000")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}

func TestCorsRejectsUnlistedOrigin(t *testing.T) {
	router := loadedRouter(t)

	w := preflight(router, "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "https://evil.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCorsWildcardSendsNoCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CorsOrigin = "*"
	dashboard, err := sdk.NewDashboard(sdk.NewMemoryRepository(), sdk.WithCache(0, 0))
	require.NoError(t, err)

	w := preflight(newServer(dashboard, cfg), "https://anywhere.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCorsPolicy_OriginList(t *testing.T) {
	router := gin.New()
	router.Use(corsPolicy(" http://a.example , ,http://b.example"))
	router.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	for _, origin := range []string{"http://a.example", "http://b.example"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, origin)
		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 1
	dashboard, err := sdk.NewDashboard(sdk.NewMemoryRepository(), sdk.WithCache(0, 0))
	require.NoError(t, err)
	router := newServer(dashboard, cfg)

	assert.Equal(t, http.StatusOK, get(router, "/api/health").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "/api/health").Code)
}

func TestSchema(t *testing.T) {
	w := get(loadedRouter(t), "/api/schema")
	require.Equal(t, http.StatusOK, w.Code)

	schema := decode[map[string]any](t, w)
	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "intensity")
	assert.Contains(t, properties, "sector")
}
