package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/isolysis/internal/model"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// POIsFromXLSX reads POIs from an XLSX workbook. The first row of the
// selected sheet must be a header with latitude and longitude columns.
func POIsFromXLSX(path string, opts XLSXOptions) ([]model.POI, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}

	sheet, err := selectSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var cm *columnMap
	var pois []model.POI
	rowIdx := 0

	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}

		if cm == nil {
			resolved, err := resolveColumns(cells)
			if err != nil {
				return nil, err
			}
			cm = resolved
			continue
		}

		if allEmpty(cells) {
			continue
		}

		poi, err := cm.poiFromRecord(cells, rowIdx)
		if err != nil {
			return nil, err
		}
		pois = append(pois, poi)
		rowIdx++
	}

	if cm == nil {
		return nil, eris.Errorf("ingest: empty xlsx sheet in %s", path)
	}
	return pois, nil
}

func selectSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("ingest: xlsx sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("ingest: xlsx sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
