package isoline

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/isolysis/internal/model"
)

// Property keys checked, in order, when deriving a band's travel time.
// Values under the minute and second keys are converted to hours.
var (
	hourKeys   = []string{"band_hours", "hours", "rho"}
	minuteKeys = []string{"band_minutes", "time_min", "minutes", "contour"}
	secondKeys = []string{"band_secs", "seconds", "value"}
)

// BandHoursFromProperties derives a band's travel time in hours from feature
// properties, trying hour, minute, and second keys in that order.
func BandHoursFromProperties(props map[string]any) (float64, bool) {
	for _, k := range hourKeys {
		if v, ok := numericProperty(props, k); ok {
			return v, true
		}
	}
	for _, k := range minuteKeys {
		if v, ok := numericProperty(props, k); ok {
			return round2(v / 60), true
		}
	}
	for _, k := range secondKeys {
		if v, ok := numericProperty(props, k); ok {
			return round2(v / 3600), true
		}
	}
	return 0, false
}

func numericProperty(props map[string]any, key string) (float64, bool) {
	raw, ok := props[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// MarshalFeatureCollection encodes bands as a GeoJSON feature collection with
// centroid_id and band_hours properties on every feature.
func MarshalFeatureCollection(bands []model.IsochroneBand) (json.RawMessage, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(bands))}
	for _, b := range bands {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: b.Geometry,
			Properties: map[string]any{
				"centroid_id": b.CentroidID,
				"band_hours":  b.BandHours,
			},
		})
	}
	out, err := json.Marshal(&fc)
	return out, eris.Wrap(err, "isoline: encode feature collection")
}

// BandsFromFeatureCollection decodes a GeoJSON feature collection of isochrone
// polygons into bands for the given centroid. Features without a recognizable
// travel-time property or with a centroid_id belonging to another centroid
// are skipped.
func BandsFromFeatureCollection(data []byte, centroidID string) ([]model.IsochroneBand, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "isoline: decode feature collection")
	}

	var bands []model.IsochroneBand
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if id, ok := f.Properties["centroid_id"].(string); ok && id != "" && id != centroidID {
			continue
		}
		hours, ok := BandHoursFromProperties(f.Properties)
		if !ok {
			continue
		}
		bands = append(bands, model.IsochroneBand{
			CentroidID: centroidID,
			BandHours:  hours,
			Geometry:   f.Geometry,
		})
	}

	if len(bands) == 0 {
		return nil, eris.Errorf("isoline: no usable bands for centroid %s", centroidID)
	}
	return bands, nil
}
