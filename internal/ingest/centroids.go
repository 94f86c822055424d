package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/isolysis/internal/model"
)

// Column synonyms accepted in tabular centroid sources, beyond the shared
// lat/lon/id/name sets.
var (
	rhoColumns     = []string{"rho", "max_hours", "hours"}
	maxProdColumns = []string{"max_production", "max_prod"}
)

// LoadCentroids reads centroids from a CSV or JSON source. Remote URLs are
// downloaded first.
func LoadCentroids(ctx context.Context, source string) ([]model.Centroid, error) {
	path, cleanup, err := materialize(ctx, source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return CentroidsFromCSV(ctx, f)
	case ".json":
		return CentroidsFromJSON(ctx, f)
	default:
		return nil, eris.Errorf("ingest: unsupported centroid format %q", filepath.Ext(path))
	}
}

// CentroidsFromJSON reads centroids from a JSON array of objects with id,
// lat, lon, and optional rho and max_production fields.
func CentroidsFromJSON(ctx context.Context, r io.Reader) ([]model.Centroid, error) {
	cenCh, errCh := DecodeJSONArray[model.Centroid](ctx, r)

	var centroids []model.Centroid
	for c := range cenCh {
		if c.ID == "" {
			c.ID = fmt.Sprintf("centroid_%d", len(centroids))
		}
		centroids = append(centroids, c)
	}

	if err := drainErr(errCh); err != nil {
		return nil, err
	}
	return centroids, nil
}

// CentroidsFromCSV reads centroids from a CSV stream. The first row must be a
// header containing latitude and longitude columns; rho and max_production
// columns are optional.
func CentroidsFromCSV(ctx context.Context, r io.Reader) ([]model.Centroid, error) {
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{})

	var (
		cm        *columnMap
		rhoIdx    = -1
		maxIdx    = -1
		centroids []model.Centroid
	)
	rowIdx := 0

	for record := range rowCh {
		if cm == nil {
			resolved, err := resolveColumns(record)
			if err != nil {
				return nil, err
			}
			cm = resolved
			for _, i := range cm.extra {
				col := strings.ToLower(strings.TrimSpace(record[i]))
				switch {
				case rhoIdx < 0 && contains(rhoColumns, col):
					rhoIdx = i
				case maxIdx < 0 && contains(maxProdColumns, col):
					maxIdx = i
				}
			}
			continue
		}

		c, err := cm.centroidFromRecord(record, rowIdx, rhoIdx, maxIdx)
		if err != nil {
			return nil, err
		}
		centroids = append(centroids, c)
		rowIdx++
	}

	if err := drainErr(errCh); err != nil {
		return nil, err
	}
	if cm == nil {
		return nil, eris.New("ingest: empty csv")
	}
	return centroids, nil
}

func (cm *columnMap) centroidFromRecord(record []string, rowIdx, rhoIdx, maxIdx int) (model.Centroid, error) {
	get := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	lat, err := strconv.ParseFloat(get(cm.lat), 64)
	if err != nil {
		return model.Centroid{}, eris.Wrapf(err, "ingest: row %d: parse latitude", rowIdx)
	}
	lon, err := strconv.ParseFloat(get(cm.lon), 64)
	if err != nil {
		return model.Centroid{}, eris.Wrapf(err, "ingest: row %d: parse longitude", rowIdx)
	}

	c := model.Centroid{ID: get(cm.id), Lat: lat, Lon: lon}
	if c.ID == "" {
		c.ID = fmt.Sprintf("centroid_%d", rowIdx)
	}

	if v := get(rhoIdx); v != "" {
		rho, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.Centroid{}, eris.Wrapf(err, "ingest: row %d: parse rho", rowIdx)
		}
		c.Rho = rho
	}
	if v := get(maxIdx); v != "" {
		mp, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.Centroid{}, eris.Wrapf(err, "ingest: row %d: parse max_production", rowIdx)
		}
		c.MaxProduction = &mp
	}

	return c, nil
}
