package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/isolysis/internal/model"
)

// Column synonyms accepted in tabular POI sources. Matching is
// case-insensitive; unmatched columns land in POI metadata.
var (
	latColumns  = []string{"lat", "latitude", "y"}
	lonColumns  = []string{"lon", "lng", "long", "longitude", "x"}
	idColumns   = []string{"id", "poi_id", "point_id"}
	nameColumns = []string{"name", "label", "title"}
)

// columnMap resolves header positions for POI fields.
type columnMap struct {
	lat   int
	lon   int
	id    int
	name  int
	extra []int // indexes of metadata columns
	names []string
}

func resolveColumns(header []string) (*columnMap, error) {
	cm := &columnMap{lat: -1, lon: -1, id: -1, name: -1, names: header}

	for i, raw := range header {
		col := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case cm.lat < 0 && contains(latColumns, col):
			cm.lat = i
		case cm.lon < 0 && contains(lonColumns, col):
			cm.lon = i
		case cm.id < 0 && contains(idColumns, col):
			cm.id = i
		case cm.name < 0 && contains(nameColumns, col):
			cm.name = i
		default:
			cm.extra = append(cm.extra, i)
		}
	}

	if cm.lat < 0 || cm.lon < 0 {
		return nil, eris.Errorf("ingest: header %v has no latitude/longitude columns", header)
	}
	return cm, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// poiFromRecord builds a POI from one tabular row. rowIdx seeds the fallback
// ID for rows without one.
func (cm *columnMap) poiFromRecord(record []string, rowIdx int) (model.POI, error) {
	get := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	lat, err := strconv.ParseFloat(get(cm.lat), 64)
	if err != nil {
		return model.POI{}, eris.Wrapf(err, "ingest: row %d: parse latitude", rowIdx)
	}
	lon, err := strconv.ParseFloat(get(cm.lon), 64)
	if err != nil {
		return model.POI{}, eris.Wrapf(err, "ingest: row %d: parse longitude", rowIdx)
	}

	poi := model.POI{
		ID:   get(cm.id),
		Lat:  lat,
		Lon:  lon,
		Name: get(cm.name),
	}
	if poi.ID == "" {
		poi.ID = fallbackID(rowIdx)
	}

	for _, i := range cm.extra {
		val := get(i)
		if val == "" {
			continue
		}
		if poi.Metadata == nil {
			poi.Metadata = make(map[string]any)
		}
		key := strings.TrimSpace(cm.names[i])
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			poi.Metadata[key] = f
		} else {
			poi.Metadata[key] = val
		}
	}

	return poi, nil
}
