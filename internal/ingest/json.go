package ingest

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/isolysis/internal/model"
)

// DecodeJSONArray streams elements of a JSON array to a channel. Expects
// input in the form [{...},{...}]. Both channels are closed when processing
// completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "ingest: read opening json token")
			return
		}

		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("ingest: expected json array, got %v", tok)
			return
		}

		for decoder.More() {
			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "ingest: decode json element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: json cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// POIsFromJSON reads POIs from a JSON array of objects with id, lat, lon,
// name, and metadata fields.
func POIsFromJSON(ctx context.Context, r io.Reader) ([]model.POI, error) {
	poiCh, errCh := DecodeJSONArray[model.POI](ctx, r)

	var pois []model.POI
	for poi := range poiCh {
		if poi.ID == "" {
			poi.ID = fallbackID(len(pois))
		}
		pois = append(pois, poi)
	}

	if err := drainErr(errCh); err != nil {
		return nil, err
	}
	return pois, nil
}
