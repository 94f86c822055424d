package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	gogeom "github.com/twpayne/go-geom"

	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/internal/spatial"
)

func testBand(centroidID string, hours float64, x float64) model.IsochroneBand {
	poly := gogeom.NewPolygon(gogeom.XY).MustSetCoords([][]gogeom.Coord{
		{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}},
	})
	return model.IsochroneBand{CentroidID: centroidID, BandHours: hours, Geometry: poly}
}

func TestInputHash_Deterministic(t *testing.T) {
	bands := []model.IsochroneBand{testBand("C1", 0.5, 0)}
	pois := []model.POI{{ID: "P1", Lat: 0.5, Lon: 0.5}}
	opts := spatial.DefaultOptions()

	h1 := InputHash(bands, pois, opts)
	h2 := InputHash(bands, pois, opts)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestInputHash_SensitiveToInput(t *testing.T) {
	bands := []model.IsochroneBand{testBand("C1", 0.5, 0)}
	pois := []model.POI{{ID: "P1", Lat: 0.5, Lon: 0.5}}
	opts := spatial.DefaultOptions()

	base := InputHash(bands, pois, opts)

	assert.NotEqual(t, base, InputHash([]model.IsochroneBand{testBand("C1", 1.0, 0)}, pois, opts))
	assert.NotEqual(t, base, InputHash([]model.IsochroneBand{testBand("C1", 0.5, 5)}, pois, opts))
	assert.NotEqual(t, base, InputHash(bands, []model.POI{{ID: "P2", Lat: 0.5, Lon: 0.5}}, opts))

	changed := opts
	changed.MinOverlap = 3
	assert.NotEqual(t, base, InputHash(bands, pois, changed))
}
