package spatial

import (
	"sort"

	"github.com/sells-group/isolysis/internal/model"
)

// ComputeOutOfBand returns the POIs absent from the covered set. The covered
// union is supplied by the orchestrator, which already computed it during
// coverage aggregation; no additional spatial joins run here. Ids are sorted
// lexicographically so the result is deterministic.
func ComputeOutOfBand(allIDs []string, covered map[string]struct{}) model.OutOfBandAnalysis {
	oob := make([]string, 0)
	for _, id := range allIDs {
		if _, ok := covered[id]; !ok {
			oob = append(oob, id)
		}
	}
	sort.Strings(oob)

	pct := 0.0
	if len(allIDs) > 0 {
		pct = float64(len(oob)) / float64(len(allIDs)) * 100
	}
	return model.OutOfBandAnalysis{
		TotalOOBPOIs:  len(oob),
		OOBPOIIDs:     oob,
		OOBPercentage: pct,
	}
}
