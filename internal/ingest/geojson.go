package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/pkg/isoline"
)

// POIsFromGeoJSON reads POIs from a GeoJSON feature collection of points.
// Non-point features are skipped; feature properties become POI metadata.
func POIsFromGeoJSON(data []byte) ([]model.POI, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "ingest: decode geojson")
	}

	var pois []model.POI
	var skipped int
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		pt, ok := f.Geometry.(*gogeom.Point)
		if !ok {
			skipped++
			continue
		}

		coords := pt.Coords()
		poi := model.POI{
			ID:  featureID(f, len(pois)),
			Lon: coords.X(),
			Lat: coords.Y(),
		}
		for k, v := range f.Properties {
			switch strings.ToLower(k) {
			case "name", "label", "title":
				if s, ok := v.(string); ok && poi.Name == "" {
					poi.Name = s
					continue
				}
			case "id", "poi_id", "point_id":
				continue
			}
			if poi.Metadata == nil {
				poi.Metadata = make(map[string]any)
			}
			poi.Metadata[k] = v
		}
		pois = append(pois, poi)
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped non-point geojson features", zap.Int("skipped", skipped))
	}
	return pois, nil
}

// BandsFromGeoJSON reads isochrone bands from a GeoJSON feature collection
// of polygons. Each feature needs a centroid_id property and a recognizable
// travel-time property.
func BandsFromGeoJSON(data []byte) ([]model.IsochroneBand, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "ingest: decode geojson")
	}

	var bands []model.IsochroneBand
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		switch f.Geometry.(type) {
		case *gogeom.Polygon, *gogeom.MultiPolygon:
		default:
			continue
		}

		centroidID, _ := f.Properties["centroid_id"].(string)
		if centroidID == "" {
			return nil, eris.Errorf("ingest: band feature %d has no centroid_id", i)
		}
		hours, ok := isoline.BandHoursFromProperties(f.Properties)
		if !ok {
			return nil, eris.Errorf("ingest: band feature %d has no travel-time property", i)
		}

		bands = append(bands, model.IsochroneBand{
			CentroidID: centroidID,
			BandHours:  hours,
			Geometry:   f.Geometry,
		})
	}

	if len(bands) == 0 {
		return nil, eris.New("ingest: no band polygons in geojson")
	}
	return bands, nil
}

func featureID(f *geojson.Feature, idx int) string {
	for _, key := range []string{"id", "poi_id", "point_id"} {
		if v, ok := f.Properties[key]; ok {
			switch id := v.(type) {
			case string:
				if id != "" {
					return id
				}
			case float64:
				return fmt.Sprintf("%.0f", id)
			}
		}
	}
	if f.ID != "" {
		return f.ID
	}
	return fallbackID(idx)
}
