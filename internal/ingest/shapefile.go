package ingest

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
)

// POIsFromShapefile reads point features from a shapefile. Attribute fields
// are harmonized the same way as tabular headers; non-point shapes are
// skipped.
func POIsFromShapefile(shpPath string) ([]model.POI, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	idIdx, nameIdx := -1, -1
	for i, n := range names {
		lower := strings.ToLower(n)
		if idIdx < 0 && contains(idColumns, lower) {
			idIdx = i
		}
		if nameIdx < 0 && contains(nameColumns, lower) {
			nameIdx = i
		}
	}

	var pois []model.POI
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}

		attr := func(i int) string {
			if i < 0 {
				return ""
			}
			return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		poi := model.POI{
			ID:   attr(idIdx),
			Lat:  pt.Y,
			Lon:  pt.X,
			Name: attr(nameIdx),
		}
		if poi.ID == "" {
			poi.ID = fallbackID(len(pois))
		}

		for i, n := range names {
			if i == idIdx || i == nameIdx {
				continue
			}
			val := attr(i)
			if val == "" {
				continue
			}
			if poi.Metadata == nil {
				poi.Metadata = make(map[string]any)
			}
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				poi.Metadata[n] = f
			} else {
				poi.Metadata[n] = val
			}
		}

		pois = append(pois, poi)
	}

	if skipped > 0 {
		zap.L().Debug("ingest: skipped non-point shapes",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return pois, nil
}
