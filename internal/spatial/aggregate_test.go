package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/isolysis/internal/model"
)

func TestAggregateCentroids_GroupsAndSorts(t *testing.T) {
	coverages := []model.BandCoverage{
		{CentroidID: "C1", BandHours: 0.5, BandLabel: "30min", POICount: 3, POIIDs: []string{"a", "b", "c"}},
		{CentroidID: "C2", BandHours: 1.0, BandLabel: "1h", POICount: 1, POIIDs: []string{"d"}},
		{CentroidID: "C1", BandHours: 0.25, BandLabel: "15min", POICount: 2, POIIDs: []string{"a", "b"}},
	}

	out := AggregateCentroids(coverages)
	require.Len(t, out, 2)

	c1 := out[0]
	assert.Equal(t, "C1", c1.CentroidID)
	assert.Equal(t, 2, c1.TotalBands)
	// Bands sorted ascending by hours.
	assert.Equal(t, 0.25, c1.Bands[0].BandHours)
	assert.Equal(t, 0.5, c1.Bands[1].BandHours)
	// a, b, c across both bands.
	assert.Equal(t, 3, c1.TotalUniquePOIs)
	assert.Equal(t, "30min", c1.MaxCoverageBand)

	c2 := out[1]
	assert.Equal(t, "C2", c2.CentroidID)
	assert.Equal(t, 1, c2.TotalUniquePOIs)
	assert.Equal(t, "1h", c2.MaxCoverageBand)
}

func TestAggregateCentroids_TieGoesToEarlierBand(t *testing.T) {
	coverages := []model.BandCoverage{
		{CentroidID: "C1", BandHours: 1.0, BandLabel: "1h", POICount: 2, POIIDs: []string{"a", "b"}},
		{CentroidID: "C1", BandHours: 0.5, BandLabel: "30min", POICount: 2, POIIDs: []string{"a", "b"}},
	}

	out := AggregateCentroids(coverages)
	require.Len(t, out, 1)
	// After sorting, the 30min band comes first and wins the tie.
	assert.Equal(t, "30min", out[0].MaxCoverageBand)
}

func TestAggregateCentroids_Empty(t *testing.T) {
	assert.Empty(t, AggregateCentroids(nil))
}

func TestCoveredIDs(t *testing.T) {
	coverages := []model.BandCoverage{
		{CentroidID: "C1", POIIDs: []string{"a", "b"}},
		{CentroidID: "C2", POIIDs: []string{"b", "c"}},
	}

	covered := CoveredIDs(coverages)
	assert.Len(t, covered, 3)
	for _, id := range []string{"a", "b", "c"} {
		assert.Contains(t, covered, id)
	}
}
