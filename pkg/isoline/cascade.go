package isoline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/isolysis/internal/model"
)

// CascadeProvider tries isoline providers in order until one succeeds.
type CascadeProvider struct {
	providers []Provider
}

// NewCascadeProvider creates a CascadeProvider that tries providers in order.
func NewCascadeProvider(providers ...Provider) *CascadeProvider {
	return &CascadeProvider{providers: providers}
}

func (c *CascadeProvider) Name() string { return "cascade" }

// Available reports whether at least one underlying provider is configured.
func (c *CascadeProvider) Available() bool {
	for _, p := range c.providers {
		if p.Available() {
			return true
		}
	}
	return false
}

// Isochrones tries each available provider in order, returning the first
// successful band set.
func (c *CascadeProvider) Isochrones(ctx context.Context, centroid model.Centroid, bandHours []float64) ([]model.IsochroneBand, error) {
	var lastErr error
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		bands, err := p.Isochrones(ctx, centroid, bandHours)
		if err != nil {
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.String("centroid_id", centroid.ID),
				zap.Error(err),
			)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return bands, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, eris.New("isoline: no providers available")
}
