package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/ingest"
	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/internal/spatial"
	"github.com/sells-group/isolysis/internal/store"
	"github.com/sells-group/isolysis/pkg/isoline"
)

// analysisOptions overrides the server's default analysis parameters.
type analysisOptions struct {
	MinOverlap              int                `json:"min_overlap,omitempty"`
	MaxCombinations         int                `json:"max_combinations,omitempty"`
	ProductionKey           string             `json:"production_key,omitempty"`
	MaxProductionByCentroid map[string]float64 `json:"max_production_by_centroid,omitempty"`
}

type analyzeRequest struct {
	// Bands is a GeoJSON feature collection of isochrone polygons with
	// centroid_id and travel-time properties.
	Bands   json.RawMessage  `json:"bands"`
	POIs    []model.POI      `json:"pois"`
	Options *analysisOptions `json:"options,omitempty"`
}

type analyzeResponse struct {
	AnalysisID string                       `json:"analysis_id,omitempty"`
	Result     *model.SpatialAnalysisResult `json:"result"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Bands) == 0 {
		writeError(w, http.StatusBadRequest, "bands are required")
		return
	}

	bands, err := ingest.BandsFromGeoJSON(req.Bands)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := s.resolveOptions(req.Options)
	result, err := spatial.Analyze(r.Context(), bands, req.POIs, opts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := analyzeResponse{Result: result}
	resp.AnalysisID = s.persist(r, bands, req.POIs, opts, result)

	writeJSON(w, http.StatusOK, resp)
}

type isochroneOptions struct {
	Provider          string  `json:"provider,omitempty"`
	BandIntervalHours float64 `json:"band_interval_hours,omitempty"`
	analysisOptions
}

type isochroneRequest struct {
	Centroids []model.Centroid `json:"centroids"`
	POIs      []model.POI      `json:"pois,omitempty"`
	Options   isochroneOptions `json:"options"`
}

type isochroneResult struct {
	CentroidID string          `json:"centroid_id"`
	GeoJSON    json.RawMessage `json:"geojson,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type isochroneResponse struct {
	Provider               string                       `json:"provider"`
	Results                []isochroneResult            `json:"results"`
	TotalCentroids         int                          `json:"total_centroids"`
	SuccessfulComputations int                          `json:"successful_computations"`
	SpatialAnalysis        *model.SpatialAnalysisResult `json:"spatial_analysis,omitempty"`
	AnalysisID             string                       `json:"analysis_id,omitempty"`
}

func (s *Server) handleIsochrones(w http.ResponseWriter, r *http.Request) {
	var req isochroneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Centroids) == 0 {
		writeError(w, http.StatusBadRequest, "centroids are required")
		return
	}

	providerName := req.Options.Provider
	if providerName == "" {
		providerName = s.defaultProvider
	}
	provider, ok := s.providers[providerName]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider "+providerName)
		return
	}
	if !provider.Available() {
		writeError(w, http.StatusBadRequest, "provider "+providerName+" is not configured")
		return
	}

	interval := req.Options.BandIntervalHours
	if interval <= 0 {
		interval = s.bandInterval
	}
	svc := isoline.NewService(provider,
		isoline.WithConcurrency(s.concurrency),
		isoline.WithBandInterval(interval),
	)

	results, err := svc.Compute(r.Context(), req.Centroids)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := isochroneResponse{
		Provider:       providerName,
		TotalCentroids: len(req.Centroids),
	}
	for _, cr := range results {
		item := isochroneResult{CentroidID: cr.CentroidID}
		if cr.Err != nil {
			item.Error = cr.Err.Error()
		} else {
			raw, encErr := isoline.MarshalFeatureCollection(cr.Bands)
			if encErr != nil {
				item.Error = encErr.Error()
			} else {
				item.GeoJSON = raw
				resp.SuccessfulComputations++
			}
		}
		resp.Results = append(resp.Results, item)
	}

	if len(req.POIs) > 0 {
		allBands := isoline.Flatten(results)
		opts := s.resolveOptions(&req.Options.analysisOptions)
		opts.MaxProductionByCentroid = spatial.ThresholdsFromCentroids(req.Centroids, opts.MaxProductionByCentroid)
		analysis, err := spatial.Analyze(r.Context(), allBands, req.POIs, opts)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		resp.SpatialAnalysis = analysis
		resp.AnalysisID = s.persist(r, allBands, req.POIs, opts, analysis)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "persistence is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := s.store.GetAnalysis(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get analysis", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "persistence is not configured")
		return
	}

	filter := store.ListFilter{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	records, err := s.store.ListAnalyses(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list analyses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if records == nil {
		records = []store.AnalysisRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"analyses": records})
}

// queryInt parses a non-negative integer query parameter, ignoring anything
// malformed.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// resolveOptions merges request overrides onto the server defaults.
func (s *Server) resolveOptions(o *analysisOptions) spatial.Options {
	opts := s.analysisOpts
	if opts.MinOverlap == 0 && opts.MaxCombinations == 0 && opts.ProductionKey == "" {
		opts = spatial.DefaultOptions()
	}
	if o == nil {
		return opts
	}
	if o.MinOverlap > 0 {
		opts.MinOverlap = o.MinOverlap
	}
	if o.MaxCombinations > 0 {
		opts.MaxCombinations = o.MaxCombinations
	}
	if o.ProductionKey != "" {
		opts.ProductionKey = o.ProductionKey
	}
	if o.MaxProductionByCentroid != nil {
		opts.MaxProductionByCentroid = o.MaxProductionByCentroid
	}
	return opts
}

// persist saves an analysis if a store is configured, returning the record
// ID. Persistence failures are logged, not surfaced to the caller.
func (s *Server) persist(r *http.Request, bands []model.IsochroneBand, pois []model.POI, opts spatial.Options, result *model.SpatialAnalysisResult) string {
	if s.store == nil {
		return ""
	}

	rec, err := s.store.SaveAnalysis(r.Context(), store.InputHash(bands, pois, opts), result)
	if err != nil {
		zap.L().Error("api: save analysis", zap.Error(err))
		return ""
	}
	return rec.ID
}
