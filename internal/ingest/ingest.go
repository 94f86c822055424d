// Package ingest loads POIs and isochrone bands from local and remote
// sources: CSV, XLSX, JSON, GeoJSON, shapefiles, and ZIP archives over
// HTTP or FTP.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
)

// LoadPOIs reads POIs from the given source. Local paths are dispatched by
// extension; http, https, and ftp URLs are downloaded first. ZIP archives
// are extracted and the contained dataset is loaded.
func LoadPOIs(ctx context.Context, source string) ([]model.POI, error) {
	path, cleanup, err := materialize(ctx, source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return POIsFromCSV(ctx, f)
	case ".xlsx":
		return POIsFromXLSX(path, XLSXOptions{})
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return POIsFromJSON(ctx, f)
	case ".geojson":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		return POIsFromGeoJSON(data)
	case ".shp":
		return POIsFromShapefile(path)
	case ".zip":
		return poisFromZIP(ctx, path)
	default:
		return nil, eris.Errorf("ingest: unsupported POI format %q", filepath.Ext(path))
	}
}

// LoadBands reads isochrone bands from a GeoJSON or JSON source. Remote URLs
// are downloaded first.
func LoadBands(ctx context.Context, source string) ([]model.IsochroneBand, error) {
	path, cleanup, err := materialize(ctx, source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		return BandsFromGeoJSON(data)
	default:
		return nil, eris.Errorf("ingest: unsupported band format %q", filepath.Ext(path))
	}
}

// materialize resolves a source to a local file path, downloading remote URLs
// to a temp file. The returned cleanup removes any temp file.
func materialize(ctx context.Context, source string) (string, func(), error) {
	noop := func() {}

	if !isRemote(source) {
		return source, noop, nil
	}

	tmp, err := os.CreateTemp("", "isolysis-ingest-*"+filepath.Ext(source))
	if err != nil {
		return "", noop, eris.Wrap(err, "ingest: create temp file")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	cleanup := func() { _ = os.Remove(tmpPath) }

	n, err := DownloadToFile(ctx, source, tmpPath)
	if err != nil {
		cleanup()
		return "", noop, err
	}
	zap.L().Debug("ingest: downloaded source",
		zap.String("url", source),
		zap.Int64("bytes", n),
	)
	return tmpPath, cleanup, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "ftp://")
}

// poisFromZIP extracts a ZIP archive and loads the first supported dataset
// found inside. Shapefiles are preferred, then CSV, XLSX, and GeoJSON.
func poisFromZIP(ctx context.Context, zipPath string) ([]model.POI, error) {
	destDir, err := os.MkdirTemp("", "isolysis-zip-*")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create extract dir")
	}
	defer os.RemoveAll(destDir) //nolint:errcheck

	files, err := ExtractZIP(zipPath, destDir)
	if err != nil {
		return nil, err
	}

	for _, ext := range []string{".shp", ".csv", ".xlsx", ".geojson", ".json"} {
		for _, f := range files {
			if strings.EqualFold(filepath.Ext(f), ext) {
				return LoadPOIs(ctx, f)
			}
		}
	}
	return nil, eris.Errorf("ingest: no supported dataset in %s", zipPath)
}

func drainErr(errCh <-chan error) error {
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func fallbackID(i int) string {
	return fmt.Sprintf("poi_%d", i)
}
