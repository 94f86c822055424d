package spatial

import (
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
)

// FormatBandLabel renders a band's travel time as a human label: sub-hour
// values become truncated integer minutes ("15min"), whole hours become "1h",
// fractional hours keep their value ("1.5h").
func FormatBandLabel(hours float64) string {
	if hours < 1 {
		return fmt.Sprintf("%dmin", int(hours*60))
	}
	if hours == math.Trunc(hours) {
		return fmt.Sprintf("%dh", int(hours))
	}
	return strconv.FormatFloat(hours, 'f', -1, 64) + "h"
}

// ComputeBandCoverage runs the per-band spatial join: contained POIs, coverage
// percentage, production sum, and the per-centroid viability verdict.
//
// An empty POI index yields an empty slice, not zero-count entries: "no
// analysis possible" is distinct from "analysis ran, zero coverage". Bands
// whose geometry cannot be interpreted are logged and skipped.
func ComputeBandCoverage(bands []model.IsochroneBand, ix *POIIndex, maxProductionByCentroid map[string]float64) []model.BandCoverage {
	if ix.Len() == 0 {
		return []model.BandCoverage{}
	}

	total := ix.Len()
	coverages := make([]model.BandCoverage, 0, len(bands))
	for _, band := range bands {
		poly, err := toPolygon(band.Geometry)
		if err != nil {
			zap.L().Warn("spatial: skipping band with unusable geometry",
				zap.String("centroid_id", band.CentroidID),
				zap.Float64("band_hours", band.BandHours),
				zap.Error(err),
			)
			continue
		}

		matched := ix.Within(poly)
		ids := make([]string, 0, len(matched))
		var productionSum float64
		for _, p := range matched {
			ids = append(ids, p.ID)
			productionSum += p.Production
		}

		cov := model.BandCoverage{
			CentroidID:         band.CentroidID,
			BandHours:          band.BandHours,
			BandLabel:          FormatBandLabel(band.BandHours),
			POICount:           len(ids),
			POIIDs:             ids,
			CoveragePercentage: float64(len(ids)) / float64(total) * 100,
			ProductionSum:      productionSum,
		}
		if threshold, ok := maxProductionByCentroid[band.CentroidID]; ok && threshold > 0 {
			viable := productionSum <= threshold
			cov.Viable = &viable
		}
		coverages = append(coverages, cov)
	}
	return coverages
}
