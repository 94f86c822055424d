package spatial

import (
	"sort"

	"github.com/sells-group/isolysis/internal/model"
)

// AggregateCentroids groups per-band coverage into per-centroid summaries.
// Within a centroid, bands are ordered by ascending travel time; the unique
// POI union and the best-performing band (ties resolved by that order) are
// derived from the group. Centroids appear in first-seen input order so the
// result is deterministic.
func AggregateCentroids(coverages []model.BandCoverage) []model.CentroidCoverage {
	groups := make(map[string][]model.BandCoverage)
	var order []string
	for _, c := range coverages {
		if _, seen := groups[c.CentroidID]; !seen {
			order = append(order, c.CentroidID)
		}
		groups[c.CentroidID] = append(groups[c.CentroidID], c)
	}

	out := make([]model.CentroidCoverage, 0, len(order))
	for _, centroidID := range order {
		bands := groups[centroidID]
		sort.SliceStable(bands, func(i, j int) bool { return bands[i].BandHours < bands[j].BandHours })

		unique := make(map[string]struct{})
		best := 0
		for i, b := range bands {
			for _, id := range b.POIIDs {
				unique[id] = struct{}{}
			}
			if b.POICount > bands[best].POICount {
				best = i
			}
		}

		out = append(out, model.CentroidCoverage{
			CentroidID:      centroidID,
			TotalBands:      len(bands),
			Bands:           bands,
			TotalUniquePOIs: len(unique),
			MaxCoverageBand: bands[best].BandLabel,
		})
	}
	return out
}

// CoveredIDs returns the union of POI ids covered by any band of any centroid.
// Computed once by the orchestrator and shared with the out-of-coverage and
// global statistics steps.
func CoveredIDs(coverages []model.BandCoverage) map[string]struct{} {
	covered := make(map[string]struct{})
	for _, c := range coverages {
		for _, id := range c.POIIDs {
			covered[id] = struct{}{}
		}
	}
	return covered
}
