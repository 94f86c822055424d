package spatial

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/sells-group/isolysis/internal/model"
)

// DefaultProductionKey is the metadata key holding the numeric production
// attribute when the caller does not configure one.
const DefaultProductionKey = "Prod"

// IndexedPOI is a POI prepared for containment queries: point geometry plus
// the production value extracted once at indexing time.
type IndexedPOI struct {
	geom.Point
	ID         string
	Production float64

	ord int
}

// POIIndex answers "which POIs fall inside polygon P" queries. Candidates are
// pre-filtered through an R-tree on the polygon's bounding box, then confirmed
// with an exact, boundary-inclusive containment test.
type POIIndex struct {
	pois []*IndexedPOI
	tree *rtree.Rtree
}

// NewPOIIndex builds an index over the given POIs. The production value is
// read from metadata under productionKey (DefaultProductionKey if empty);
// missing or non-numeric values count as 0. An empty POI slice yields an
// empty, queryable index.
func NewPOIIndex(pois []model.POI, productionKey string) *POIIndex {
	if productionKey == "" {
		productionKey = DefaultProductionKey
	}

	ix := &POIIndex{
		pois: make([]*IndexedPOI, 0, len(pois)),
		tree: rtree.NewTree(25, 50),
	}
	for i, p := range pois {
		ip := &IndexedPOI{
			Point:      geom.Point{X: p.Lon, Y: p.Lat},
			ID:         p.ID,
			Production: productionValue(p.Metadata, productionKey),
			ord:        i,
		}
		ix.pois = append(ix.pois, ip)
		ix.tree.Insert(ip)
	}
	return ix
}

// Len returns the number of indexed POIs.
func (ix *POIIndex) Len() int { return len(ix.pois) }

// IDs returns all POI ids in input order.
func (ix *POIIndex) IDs() []string {
	ids := make([]string, len(ix.pois))
	for i, p := range ix.pois {
		ids[i] = p.ID
	}
	return ids
}

// Within returns the POIs contained in the polygon (boundary inclusive), in
// input order.
func (ix *POIIndex) Within(poly geom.Polygon) []*IndexedPOI {
	if len(ix.pois) == 0 || len(poly) == 0 {
		return nil
	}

	var matches []*IndexedPOI
	for _, item := range ix.tree.SearchIntersect(poly.Bounds()) {
		ip := item.(*IndexedPOI)
		if ip.Point.Within(poly) != geom.Outside {
			matches = append(matches, ip)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ord < matches[j].ord })
	return matches
}

// productionValue extracts a numeric value from the metadata bag. Malformed
// metadata never fails indexing; it just contributes 0.
func productionValue(metadata map[string]any, key string) float64 {
	if metadata == nil {
		return 0
	}
	v, ok := metadata[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
