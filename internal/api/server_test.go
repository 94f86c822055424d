package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gogeom "github.com/twpayne/go-geom"

	"github.com/sells-group/isolysis/internal/config"
	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/internal/store"
	"github.com/sells-group/isolysis/pkg/isoline"
)

// fakeProvider returns a unit square around each centroid for every band.
type fakeProvider struct {
	available bool
	fail      bool
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Isochrones(_ context.Context, c model.Centroid, bandHours []float64) ([]model.IsochroneBand, error) {
	if f.fail {
		return nil, eris.New("routing backend down")
	}
	bands := make([]model.IsochroneBand, len(bandHours))
	for i, h := range bandHours {
		half := 0.5 * h
		poly := gogeom.NewPolygon(gogeom.XY).MustSetCoords([][]gogeom.Coord{{
			{c.Lon - half, c.Lat - half},
			{c.Lon + half, c.Lat - half},
			{c.Lon + half, c.Lat + half},
			{c.Lon - half, c.Lat + half},
			{c.Lon - half, c.Lat - half},
		}})
		bands[i] = model.IsochroneBand{CentroidID: c.ID, BandHours: h, Geometry: poly}
	}
	return bands, nil
}

// fakeStore keeps records in memory.
type fakeStore struct {
	records map[string]*store.AnalysisRecord
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*store.AnalysisRecord)}
}

func (f *fakeStore) SaveAnalysis(_ context.Context, inputHash string, result *model.SpatialAnalysisResult) (*store.AnalysisRecord, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	rec := &store.AnalysisRecord{
		ID:        fmt.Sprintf("rec-%d", len(f.records)+1),
		InputHash: inputHash,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) GetAnalysis(_ context.Context, id string) (*store.AnalysisRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) GetAnalysisByHash(_ context.Context, hash string) (*store.AnalysisRecord, error) {
	for _, rec := range f.records {
		if rec.InputHash == hash {
			return rec, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListAnalyses(_ context.Context, _ store.ListFilter) ([]store.AnalysisRecord, error) {
	var out []store.AnalysisRecord
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Providers: config.ProvidersConfig{Default: "fake", Concurrency: 2},
		Analysis:  config.AnalysisConfig{MinOverlap: 2, MaxCombinations: 100, ProductionKey: "Prod"},
	}
}

func newTestServer(t *testing.T, st store.Store, p isoline.Provider) *httptest.Server {
	t.Helper()
	opts := []Option{}
	if st != nil {
		opts = append(opts, WithStore(st))
	}
	srv := NewServer(testConfig(), map[string]isoline.Provider{"fake": p}, opts...)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, []any{"fake"}, body["available_providers"])
}

func TestHealth_UnavailableProvider(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: false})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, []any{"fake"}, body["unavailable_providers"])
}

const analyzeBandsFC = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"centroid_id": "C1", "band_minutes": 30},
			"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
		}
	]
}`

func TestAnalyze_Success(t *testing.T) {
	st := newFakeStore()
	ts := newTestServer(t, st, &fakeProvider{available: true})

	req := map[string]any{
		"bands": json.RawMessage(analyzeBandsFC),
		"pois": []map[string]any{
			{"id": "P1", "lat": 0.5, "lon": 0.5},
			{"id": "P2", "lat": 5.0, "lon": 5.0},
		},
	}
	resp := postJSON(t, ts.URL+"/v1/analyze", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[analyzeResponse](t, resp)
	require.NotNil(t, body.Result)
	assert.Equal(t, 2, body.Result.TotalPOIs)
	assert.InDelta(t, 50.0, body.Result.GlobalCoveragePercentage, 1e-9)
	assert.NotEmpty(t, body.AnalysisID)

	_, ok := st.records[body.AnalysisID]
	assert.True(t, ok)
}

func TestAnalyze_MissingBands(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true})

	resp := postJSON(t, ts.URL+"/v1/analyze", map[string]any{"pois": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Contains(t, body["error"], "bands are required")
}

func TestAnalyze_InvalidBody(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true})

	resp, err := http.Post(ts.URL+"/v1/analyze", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestIsochrones_Success(t *testing.T) {
	st := newFakeStore()
	ts := newTestServer(t, st, &fakeProvider{available: true})

	req := map[string]any{
		"centroids": []map[string]any{
			{"id": "C1", "lat": 40.0, "lon": -3.0, "rho": 1.0},
		},
		"pois": []map[string]any{
			{"id": "P1", "lat": 40.0, "lon": -3.0},
		},
	}
	resp := postJSON(t, ts.URL+"/v1/isochrones", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[isochroneResponse](t, resp)
	assert.Equal(t, "fake", body.Provider)
	assert.Equal(t, 1, body.TotalCentroids)
	assert.Equal(t, 1, body.SuccessfulComputations)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "C1", body.Results[0].CentroidID)
	assert.NotEmpty(t, body.Results[0].GeoJSON)

	require.NotNil(t, body.SpatialAnalysis)
	assert.Equal(t, 1, body.SpatialAnalysis.TotalPOIs)
	assert.NotEmpty(t, body.AnalysisID)
}

func TestIsochrones_CentroidMaxProduction(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true})

	req := map[string]any{
		"centroids": []map[string]any{
			{"id": "C1", "lat": 40.0, "lon": -3.0, "rho": 0.5, "max_production": 10.0},
		},
		"pois": []map[string]any{
			{"id": "P1", "lat": 40.0, "lon": -3.0, "metadata": map[string]any{"Prod": 15.0}},
		},
	}
	resp := postJSON(t, ts.URL+"/v1/isochrones", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[isochroneResponse](t, resp)
	require.NotNil(t, body.SpatialAnalysis)
	require.Len(t, body.SpatialAnalysis.CoverageAnalysis, 1)
	require.NotEmpty(t, body.SpatialAnalysis.CoverageAnalysis[0].Bands)

	band := body.SpatialAnalysis.CoverageAnalysis[0].Bands[0]
	require.NotNil(t, band.Viable, "centroid max_production should produce a viability verdict")
	assert.False(t, *band.Viable)
}

func TestIsochrones_NoCentroids(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true})

	resp := postJSON(t, ts.URL+"/v1/isochrones", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIsochrones_UnknownProvider(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true})

	req := map[string]any{
		"centroids": []map[string]any{{"id": "C1", "lat": 40.0, "lon": -3.0, "rho": 0.5}},
		"options":   map[string]any{"provider": "nope"},
	}
	resp := postJSON(t, ts.URL+"/v1/isochrones", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Contains(t, body["error"], "unknown provider")
}

func TestIsochrones_ProviderNotConfigured(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: false})

	req := map[string]any{
		"centroids": []map[string]any{{"id": "C1", "lat": 40.0, "lon": -3.0, "rho": 0.5}},
	}
	resp := postJSON(t, ts.URL+"/v1/isochrones", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIsochrones_BackendFailure(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true, fail: true})

	req := map[string]any{
		"centroids": []map[string]any{{"id": "C1", "lat": 40.0, "lon": -3.0, "rho": 0.5}},
	}
	resp := postJSON(t, ts.URL+"/v1/isochrones", req)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGetAnalysis(t *testing.T) {
	st := newFakeStore()
	rec, err := st.SaveAnalysis(context.Background(), "h1", &model.SpatialAnalysisResult{TotalPOIs: 3})
	require.NoError(t, err)

	ts := newTestServer(t, st, &fakeProvider{available: true})

	resp, err := http.Get(ts.URL + "/v1/analyses/" + rec.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[store.AnalysisRecord](t, resp)
	assert.Equal(t, rec.ID, body.ID)
	assert.Equal(t, 3, body.Result.TotalPOIs)
}

func TestGetAnalysis_NotFound(t *testing.T) {
	ts := newTestServer(t, newFakeStore(), &fakeProvider{available: true})

	resp, err := http.Get(ts.URL + "/v1/analyses/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetAnalysis_NoStore(t *testing.T) {
	ts := newTestServer(t, nil, &fakeProvider{available: true})

	resp, err := http.Get(ts.URL + "/v1/analyses/any")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestListAnalyses(t *testing.T) {
	st := newFakeStore()
	_, err := st.SaveAnalysis(context.Background(), "h1", &model.SpatialAnalysisResult{})
	require.NoError(t, err)

	ts := newTestServer(t, st, &fakeProvider{available: true})

	resp, err := http.Get(ts.URL + "/v1/analyses")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string][]store.AnalysisRecord](t, resp)
	assert.Len(t, body["analyses"], 1)
}

func TestAnalyze_PersistFailureStillReturnsResult(t *testing.T) {
	st := newFakeStore()
	st.saveErr = eris.New("disk full")
	ts := newTestServer(t, st, &fakeProvider{available: true})

	req := map[string]any{
		"bands": json.RawMessage(analyzeBandsFC),
		"pois":  []map[string]any{{"id": "P1", "lat": 0.5, "lon": 0.5}},
	}
	resp := postJSON(t, ts.URL+"/v1/analyze", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[analyzeResponse](t, resp)
	require.NotNil(t, body.Result)
	assert.Empty(t, body.AnalysisID)
}
