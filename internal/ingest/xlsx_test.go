package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestPOIsFromXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"id", "name", "lat", "lon", "Prod"},
			{"P1", "Depot A", "40.1", "-3.5", "120"},
			{"P2", "Depot B", "40.2", "-3.6", "80"},
		},
	})

	pois, err := POIsFromXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, pois, 2)

	assert.Equal(t, "P1", pois[0].ID)
	assert.InDelta(t, 40.1, pois[0].Lat, 1e-9)
	assert.Equal(t, 120.0, pois[0].Metadata["Prod"])
}

func TestPOIsFromXLSX_SheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Ignore": {{"a"}, {"b"}},
		"Points": {
			{"lat", "lon"},
			{"41.0", "-4.0"},
		},
	})

	pois, err := POIsFromXLSX(path, XLSXOptions{SheetName: "Points"})
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.InDelta(t, 41.0, pois[0].Lat, 1e-9)
}

func TestPOIsFromXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"lat", "lon"}},
	})

	_, err := POIsFromXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestPOIsFromXLSX_SkipsBlankRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"lat", "lon"},
			{"40.0", "-3.0"},
			{"", ""},
			{"41.0", "-4.0"},
		},
	})

	pois, err := POIsFromXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	assert.Len(t, pois, 2)
}

func TestPOIsFromXLSX_MissingFile(t *testing.T) {
	_, err := POIsFromXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}
