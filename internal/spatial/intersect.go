package spatial

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
)

const intersectionIDSeparator = "__"

// preparedBand caches the per-band state the enumeration needs: the unique
// label, the flattened polygon, and its bounding box.
type preparedBand struct {
	centroidID string
	bandHours  float64
	label      string
	poly       geom.Polygon
	bounds     *geom.Bounds
}

// ComputeIntersections enumerates band combinations of increasing size,
// keeping only those whose participants span at least two distinct centroids,
// whose geometric intersection is non-empty, and which contain at least one
// POI. Enumeration is lazy and stops everywhere once maxCombinations
// intersections have been emitted.
func ComputeIntersections(bands []model.IsochroneBand, ix *POIIndex, minOverlap, maxCombinations int) model.IntersectionMatrix {
	if minOverlap < 2 {
		minOverlap = 2
	}
	if maxCombinations <= 0 {
		maxCombinations = 100
	}

	prepared := prepareBands(bands)

	var pairwise, multiway []model.BandIntersection
	emitted := 0
	capped := false

	maxR := len(prepared)
	if maxCombinations < maxR {
		maxR = maxCombinations
	}

	for r := minOverlap; r <= maxR && !capped; r++ {
		comb := firstCombination(r)
		for comb != nil {
			if inter, ok := evaluateCombination(prepared, comb, ix); ok {
				if r == 2 {
					pairwise = append(pairwise, inter)
				} else {
					multiway = append(multiway, inter)
				}
				emitted++
				if emitted >= maxCombinations {
					zap.L().Warn("spatial: intersection limit reached, stopping enumeration",
						zap.Int("max_combinations", maxCombinations),
					)
					capped = true
					break
				}
			}
			comb = nextCombination(comb, len(prepared))
		}
	}

	matrix := model.IntersectionMatrix{
		TotalIntersections:    emitted,
		PairwiseIntersections: pairwise,
		MultiwayIntersections: multiway,
		MaxOverlapCount:       maxOverlapCount(pairwise, multiway),
	}
	if emitted > 0 {
		var total float64
		for _, in := range pairwise {
			total += in.IntersectionAreaKm2
		}
		for _, in := range multiway {
			total += in.IntersectionAreaKm2
		}
		matrix.TotalIntersectionAreaKm2 = &total
	}
	return matrix
}

func prepareBands(bands []model.IsochroneBand) []preparedBand {
	prepared := make([]preparedBand, 0, len(bands))
	for _, b := range bands {
		poly, err := toPolygon(b.Geometry)
		if err != nil {
			zap.L().Warn("spatial: excluding band from intersection analysis",
				zap.String("centroid_id", b.CentroidID),
				zap.Float64("band_hours", b.BandHours),
				zap.Error(err),
			)
			continue
		}
		prepared = append(prepared, preparedBand{
			centroidID: b.CentroidID,
			bandHours:  b.BandHours,
			label:      fmt.Sprintf("%s_%s", b.CentroidID, FormatBandLabel(b.BandHours)),
			poly:       poly,
			bounds:     poly.Bounds(),
		})
	}
	return prepared
}

// evaluateCombination runs the same-centroid filter, the bounding-box
// prefilter, the exact intersection, and the POI join for one combination.
// A geometry failure is logged and treated as a non-match; it never aborts
// the enumeration.
func evaluateCombination(prepared []preparedBand, comb []int, ix *POIIndex) (model.BandIntersection, bool) {
	centroids := make(map[string]struct{}, len(comb))
	for _, i := range comb {
		centroids[prepared[i].centroidID] = struct{}{}
	}
	// Bands of a single hub are nested, not overlapping in the network sense.
	if len(centroids) < 2 {
		return model.BandIntersection{}, false
	}

	for i := 1; i < len(comb); i++ {
		if !boundsOverlap(prepared[comb[0]].bounds, prepared[comb[i]].bounds) {
			return model.BandIntersection{}, false
		}
	}

	polys := make([]geom.Polygon, len(comb))
	for i, idx := range comb {
		polys[i] = prepared[idx].poly
	}
	inter, err := IntersectAll(polys)
	if err != nil {
		zap.L().Warn("spatial: skipping combination after geometry failure",
			zap.Strings("bands", combinationLabels(prepared, comb)),
			zap.Error(err),
		)
		return model.BandIntersection{}, false
	}
	if len(inter) == 0 {
		return model.BandIntersection{}, false
	}

	matched := ix.Within(inter)
	if len(matched) == 0 {
		return model.BandIntersection{}, false
	}

	labels := combinationLabels(prepared, comb)
	ids := make([]string, len(matched))
	for i, p := range matched {
		ids[i] = p.ID
	}
	centroidBands := make([]model.CentroidBand, len(comb))
	for i, idx := range comb {
		centroidBands[i] = model.CentroidBand{
			CentroidID: prepared[idx].centroidID,
			BandHours:  prepared[idx].bandHours,
		}
	}

	return model.BandIntersection{
		IntersectionID:      strings.Join(labels, intersectionIDSeparator),
		IntersectionLabel:   strings.Join(labels, " & "),
		CentroidBands:       centroidBands,
		POICount:            len(ids),
		POIIDs:              ids,
		IntersectionAreaKm2: AreaKm2(inter),
		OverlapType:         fmt.Sprintf("%d-way", len(comb)),
	}, true
}

func combinationLabels(prepared []preparedBand, comb []int) []string {
	labels := make([]string, len(comb))
	for i, idx := range comb {
		labels[i] = prepared[idx].label
	}
	return labels
}

// firstCombination returns the lexicographically first size-r index
// combination, 0..r-1.
func firstCombination(r int) []int {
	if r <= 0 {
		return nil
	}
	comb := make([]int, r)
	for i := range comb {
		comb[i] = i
	}
	return comb
}

// nextCombination advances comb in place to the next size-r combination of
// indices below n, returning nil when exhausted. Combinations are generated
// lazily; with dozens of bands the full set is far too large to materialize.
func nextCombination(comb []int, n int) []int {
	r := len(comb)
	if r > n {
		return nil
	}
	i := r - 1
	for i >= 0 && comb[i] == n-r+i {
		i--
	}
	if i < 0 {
		return nil
	}
	comb[i]++
	for j := i + 1; j < r; j++ {
		comb[j] = comb[j-1] + 1
	}
	return comb
}

func maxOverlapCount(pairwise, multiway []model.BandIntersection) int {
	max := 0
	if len(pairwise) > 0 {
		max = 2
	}
	for _, in := range multiway {
		if n := len(in.CentroidBands); n > max {
			max = n
		}
	}
	return max
}
