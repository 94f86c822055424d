package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, downloadUserAgent, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "payload")
	}))
	defer srv.Close()

	rc, err := Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDownload_HTTPNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "lat,lon\n40.0,-3.0\n")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "pois.csv")
	n, err := DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(18), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "40.0")
}

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://ftp.example.com/pub/data.zip")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.com:21", host)
	assert.Equal(t, "/pub/data.zip", path)

	host, _, err = parseFTPURL("ftp://ftp.example.com:2121/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.com:2121", host)

	_, _, err = parseFTPURL("https://example.com/data.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected ftp scheme")

	_, _, err = parseFTPURL("ftp://ftp.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty path")
}

func TestLoadPOIs_RemoteCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/pois.csv", r.URL.Path)
		_, _ = io.WriteString(w, "id,lat,lon\nP1,40.0,-3.0\n")
	}))
	defer srv.Close()

	pois, err := LoadPOIs(context.Background(), srv.URL+"/data/pois.csv")
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, "P1", pois[0].ID)
}

func TestLoadPOIs_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pois.parquet")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := LoadPOIs(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported POI format")
}

func TestLoadBands_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bands.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := LoadBands(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported band format")
}

func TestLoadBands_GeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bands.geojson")
	require.NoError(t, os.WriteFile(path, []byte(bandFC), 0o644))

	bands, err := LoadBands(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, bands, 2)
}
