package spatial

import (
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
)

// ComputeNOI derives the network optimization index:
//
//	NOI = clamp((X - Y - Z) / total, -1, 1)
//
// where X sums each centroid's unique POI count (a POI covered by several
// centroids counts once per centroid; these are coverage events, not unique
// POIs), Y is the number of distinct POIs appearing in any intersection, and
// Z is the out-of-coverage count. Zero total demand or any internal failure
// yields 0.
func ComputeNOI(coverage []model.CentroidCoverage, matrix model.IntersectionMatrix, oob model.OutOfBandAnalysis, totalPOIs int) (noi float64) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("spatial: NOI computation failed, defaulting to 0", zap.Any("cause", r))
			noi = 0
		}
	}()

	if totalPOIs == 0 {
		return 0
	}

	x := 0
	for _, c := range coverage {
		x += c.TotalUniquePOIs
	}

	overlapping := make(map[string]struct{})
	for _, in := range matrix.PairwiseIntersections {
		for _, id := range in.POIIDs {
			overlapping[id] = struct{}{}
		}
	}
	for _, in := range matrix.MultiwayIntersections {
		for _, id := range in.POIIDs {
			overlapping[id] = struct{}{}
		}
	}
	y := len(overlapping)
	z := oob.TotalOOBPOIs

	noi = float64(x-y-z) / float64(totalPOIs)
	if noi > 1 {
		noi = 1
	}
	if noi < -1 {
		noi = -1
	}
	return noi
}
