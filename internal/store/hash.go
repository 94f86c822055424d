package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/internal/spatial"
)

// InputHash derives a stable identifier for an analysis input so repeated
// runs over the same bands, POIs, and options can be recognized. Geometries
// are folded in as GeoJSON since the band JSON form omits them.
func InputHash(bands []model.IsochroneBand, pois []model.POI, opts spatial.Options) string {
	h := sha256.New()
	enc := json.NewEncoder(h)

	for _, b := range bands {
		_ = enc.Encode(b)
		if b.Geometry != nil {
			if raw, err := geojson.Marshal(b.Geometry); err == nil {
				_, _ = h.Write(raw)
			}
		}
	}
	for _, p := range pois {
		_ = enc.Encode(p)
	}
	_ = enc.Encode(struct {
		MinOverlap      int                `json:"min_overlap"`
		MaxCombinations int                `json:"max_combinations"`
		ProductionKey   string             `json:"production_key"`
		MaxProduction   map[string]float64 `json:"max_production_by_centroid,omitempty"`
	}{opts.MinOverlap, opts.MaxCombinations, opts.ProductionKey, opts.MaxProductionByCentroid})

	return hex.EncodeToString(h.Sum(nil))
}
