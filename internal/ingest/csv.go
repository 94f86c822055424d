package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/isolysis/internal/model"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads CSV rows and sends them to a channel, trimming whitespace
// from every field. The caller must consume the row channel; both channels
// are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read csv row")
				return
			}

			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// POIsFromCSV reads POIs from a CSV stream. The first row must be a header
// containing latitude and longitude columns.
func POIsFromCSV(ctx context.Context, r io.Reader) ([]model.POI, error) {
	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{})

	var cm *columnMap
	var pois []model.POI
	rowIdx := 0

	for record := range rowCh {
		if cm == nil {
			resolved, err := resolveColumns(record)
			if err != nil {
				return nil, err
			}
			cm = resolved
			continue
		}

		poi, err := cm.poiFromRecord(record, rowIdx)
		if err != nil {
			return nil, err
		}
		pois = append(pois, poi)
		rowIdx++
	}

	if err := drainErr(errCh); err != nil {
		return nil, err
	}
	if cm == nil {
		return nil, eris.New("ingest: empty csv")
	}
	return pois, nil
}
