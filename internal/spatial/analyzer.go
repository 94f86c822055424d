package spatial

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
)

// Options tune one analysis call.
type Options struct {
	// MinOverlap is the minimum participant count for an intersection.
	MinOverlap int

	// MaxCombinations caps how many intersections are computed before the
	// enumeration stops.
	MaxCombinations int

	// ProductionKey is the POI metadata key holding the production value.
	ProductionKey string

	// MaxProductionByCentroid maps centroid ids to viability thresholds.
	// Bands of centroids without an entry get no viability verdict.
	MaxProductionByCentroid map[string]float64
}

// DefaultOptions returns the standard analysis parameters.
func DefaultOptions() Options {
	return Options{
		MinOverlap:      2,
		MaxCombinations: 100,
		ProductionKey:   DefaultProductionKey,
	}
}

// ThresholdsFromCentroids builds the per-centroid viability map from centroid
// records carrying a max_production value. Centroids without an ID get the
// same positional fallback their bands get, so thresholds line up with
// coverage. Explicit overrides win over centroid-supplied values. Returns nil
// when neither source contributes anything.
func ThresholdsFromCentroids(centroids []model.Centroid, overrides map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(centroids)+len(overrides))
	for i, c := range centroids {
		if c.MaxProduction == nil {
			continue
		}
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("centroid_%d", i)
		}
		out[id] = *c.MaxProduction
	}
	for id, v := range overrides {
		out[id] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Analyze runs the full spatial analysis: per-band coverage, per-centroid
// aggregation, n-way intersections, out-of-coverage detection, and the
// network optimization index, assembled into one immutable result.
//
// Each call is stateless and holds no shared mutable state, so concurrent
// calls need no locking. An empty POI slice returns a complete zero-valued
// result rather than an error.
func Analyze(ctx context.Context, bands []model.IsochroneBand, pois []model.POI, opts Options) (*model.SpatialAnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "spatial: analyze")
	}
	for _, b := range bands {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}
	for _, p := range pois {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	if opts.MinOverlap < 2 {
		opts.MinOverlap = 2
	}
	if opts.MaxCombinations <= 0 {
		opts.MaxCombinations = 100
	}

	if len(pois) == 0 {
		zap.L().Info("spatial: no POIs supplied, returning empty analysis")
		return emptyResult(bands), nil
	}

	start := time.Now()
	ix := NewPOIIndex(pois, opts.ProductionKey)

	coverages := ComputeBandCoverage(bands, ix, opts.MaxProductionByCentroid)
	centroidCoverage := AggregateCentroids(coverages)
	covered := CoveredIDs(coverages)

	matrix := ComputeIntersections(bands, ix, opts.MinOverlap, opts.MaxCombinations)
	oob := ComputeOutOfBand(ix.IDs(), covered)
	noi := ComputeNOI(centroidCoverage, matrix, oob, ix.Len())

	result := &model.SpatialAnalysisResult{
		TotalPOIs:                ix.Len(),
		TotalCentroids:           countCentroids(bands),
		TotalBands:               len(bands),
		NetworkOptimizationIndex: &noi,
		CoverageAnalysis:         centroidCoverage,
		IntersectionAnalysis:     matrix,
		OOBAnalysis:              oob,
		GlobalCoveragePercentage: float64(len(covered)) / float64(ix.Len()) * 100,
		MostCoveredCentroid:      mostCovered(centroidCoverage),
		AnalysisTimestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	zap.L().Info("spatial: analysis complete",
		zap.Int("pois", result.TotalPOIs),
		zap.Int("bands", result.TotalBands),
		zap.Int("intersections", matrix.TotalIntersections),
		zap.Float64("global_coverage_pct", result.GlobalCoveragePercentage),
		zap.Float64("noi", noi),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func emptyResult(bands []model.IsochroneBand) *model.SpatialAnalysisResult {
	noi := 0.0
	return &model.SpatialAnalysisResult{
		TotalPOIs:                0,
		TotalCentroids:           countCentroids(bands),
		TotalBands:               len(bands),
		NetworkOptimizationIndex: &noi,
		CoverageAnalysis:         []model.CentroidCoverage{},
		IntersectionAnalysis: model.IntersectionMatrix{
			PairwiseIntersections: []model.BandIntersection{},
			MultiwayIntersections: []model.BandIntersection{},
		},
		OOBAnalysis: model.OutOfBandAnalysis{
			OOBPOIIDs: []string{},
		},
		GlobalCoveragePercentage: 0,
		AnalysisTimestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}

func countCentroids(bands []model.IsochroneBand) int {
	seen := make(map[string]struct{}, len(bands))
	for _, b := range bands {
		seen[b.CentroidID] = struct{}{}
	}
	return len(seen)
}

func mostCovered(coverage []model.CentroidCoverage) *string {
	if len(coverage) == 0 {
		return nil
	}
	best := 0
	for i, c := range coverage {
		if c.TotalUniquePOIs > coverage[best].TotalUniquePOIs {
			best = i
		}
	}
	id := coverage[best].CentroidID
	return &id
}
