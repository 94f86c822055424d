package spatial

import (
	gogeom "github.com/twpayne/go-geom"

	"github.com/sells-group/isolysis/internal/model"
)

// square builds a closed axis-aligned lon/lat square.
func square(minX, minY, maxX, maxY float64) *gogeom.Polygon {
	return gogeom.NewPolygon(gogeom.XY).MustSetCoords([][]gogeom.Coord{{
		{minX, minY}, {minX, maxY}, {maxX, maxY}, {maxX, minY}, {minX, minY},
	}})
}

func band(centroidID string, hours float64, g gogeom.T) model.IsochroneBand {
	return model.IsochroneBand{CentroidID: centroidID, BandHours: hours, Geometry: g}
}

func poi(id string, lat, lon float64) model.POI {
	return model.POI{ID: id, Lat: lat, Lon: lon}
}

func poiProd(id string, lat, lon, prod float64) model.POI {
	return model.POI{ID: id, Lat: lat, Lon: lon, Metadata: map[string]any{"Prod": prod}}
}
