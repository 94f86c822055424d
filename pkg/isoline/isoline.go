// Package isoline computes travel-time isochrone polygons for centroids
// using external routing providers.
package isoline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/isolysis/internal/model"
)

// Provider represents a single isochrone backend.
type Provider interface {
	Name() string
	Isochrones(ctx context.Context, c model.Centroid, bandHours []float64) ([]model.IsochroneBand, error)
	Available() bool
}

// BandInterval is the default spacing between successive time bands, in hours.
const BandInterval = 0.5

// GenerateTimeBands returns the band boundaries for a centroid with the given
// maximum travel time in hours. Bands are spaced at interval hours; a final
// band at maxHours is appended if the spacing does not land on it exactly.
func GenerateTimeBands(maxHours, interval float64) []float64 {
	if maxHours <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = BandInterval
	}

	n := int(maxHours / interval)
	bands := make([]float64, 0, n+1)
	for i := 1; i <= n; i++ {
		bands = append(bands, round2(float64(i)*interval))
	}
	if len(bands) == 0 || bands[len(bands)-1] < round2(maxHours) {
		bands = append(bands, round2(maxHours))
	}
	return bands
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CentroidResult holds the outcome of isochrone computation for one centroid.
type CentroidResult struct {
	CentroidID string
	Bands      []model.IsochroneBand
	Err        error
}

// Service fans isochrone requests out to a provider across centroids.
type Service struct {
	provider    Provider
	concurrency int
	interval    float64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithConcurrency sets the maximum number of centroids computed in parallel.
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithBandInterval sets the spacing between time bands in hours.
func WithBandInterval(hours float64) ServiceOption {
	return func(s *Service) {
		if hours > 0 {
			s.interval = hours
		}
	}
}

// NewService creates a Service backed by the given provider.
func NewService(provider Provider, opts ...ServiceOption) *Service {
	s := &Service{
		provider:    provider,
		concurrency: 4,
		interval:    BandInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute fetches isochrone bands for every centroid. Per-centroid failures
// are recorded in the results rather than aborting the batch; an error is
// returned only when no centroid succeeds.
func (s *Service) Compute(ctx context.Context, centroids []model.Centroid) ([]CentroidResult, error) {
	if len(centroids) == 0 {
		return nil, nil
	}
	if s.provider == nil || !s.provider.Available() {
		return nil, eris.New("isoline: no available provider")
	}

	results := make([]CentroidResult, len(centroids))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)

	for i, c := range centroids {
		if c.ID == "" {
			c.ID = fmt.Sprintf("centroid_%d", i)
		}
		eg.Go(func() error {
			bands := GenerateTimeBands(c.Rho, s.interval)
			isos, err := s.provider.Isochrones(gCtx, c, bands)
			if err != nil {
				zap.L().Warn("isoline: centroid failed",
					zap.String("provider", s.provider.Name()),
					zap.String("centroid_id", c.ID),
					zap.Error(err),
				)
				results[i] = CentroidResult{CentroidID: c.ID, Err: err}
				return nil
			}
			results[i] = CentroidResult{CentroidID: c.ID, Bands: isos}
			return nil
		})
	}

	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return results, eris.Wrap(err, "isoline: compute")
	}

	var succeeded int
	var firstErr error
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		} else if firstErr == nil {
			firstErr = r.Err
		}
	}
	if succeeded == 0 {
		return results, eris.Wrap(firstErr, "isoline: all centroids failed")
	}

	zap.L().Info("isoline: batch complete",
		zap.String("provider", s.provider.Name()),
		zap.Int("centroids", len(centroids)),
		zap.Int("succeeded", succeeded),
	)
	return results, nil
}

// Flatten collects the bands of all successful centroid results.
func Flatten(results []CentroidResult) []model.IsochroneBand {
	var bands []model.IsochroneBand
	for _, r := range results {
		bands = append(bands, r.Bands...)
	}
	return bands
}

// Errors returns one message per failed centroid.
func Errors(results []CentroidResult) []string {
	var msgs []string
	for _, r := range results {
		if r.Err != nil {
			msgs = append(msgs, fmt.Sprintf("%s: %s", r.CentroidID, strings.TrimSpace(r.Err.Error())))
		}
	}
	return msgs
}
