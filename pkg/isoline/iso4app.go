package isoline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/time/rate"

	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/internal/resilience"
)

const (
	defaultIso4AppBaseURL   = "https://api.iso4app.net/rest/1.3/isoline"
	defaultIso4AppMobility  = "motor_vehicle"
	defaultIso4AppSpeedType = "normal"
)

// Iso4AppOptions configures the Iso4App isoline provider.
type Iso4AppOptions struct {
	Key        string
	BaseURL    string  // default https://api.iso4app.net/rest/1.3/isoline
	Mobility   string  // motor_vehicle, bicycle, or pedestrian; default motor_vehicle
	SpeedType  string  // normal, fast, or slow; default normal
	SpeedLimit float64 // optional speed cap in km/h; 0 = provider default
	RateLimit  float64 // requests per second; default 2
	Timeout    time.Duration
	Retry      resilience.RetryConfig
}

// Iso4AppProvider computes isochrones via the Iso4App isoline API.
// Iso4App serves one travel-time value per request, so each band is a
// separate call.
type Iso4AppProvider struct {
	opts    Iso4AppOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewIso4AppProvider creates an Iso4AppProvider with the given options.
func NewIso4AppProvider(opts Iso4AppOptions) *Iso4AppProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultIso4AppBaseURL
	}
	if opts.Mobility == "" {
		opts.Mobility = defaultIso4AppMobility
	}
	if opts.SpeedType == "" {
		opts.SpeedType = defaultIso4AppSpeedType
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &Iso4AppProvider{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}
}

// Name implements Provider.
func (p *Iso4AppProvider) Name() string { return "iso4app" }

// Available implements Provider.
func (p *Iso4AppProvider) Available() bool { return p.opts.Key != "" }

// Isochrones implements Provider.
func (p *Iso4AppProvider) Isochrones(ctx context.Context, c model.Centroid, bandHours []float64) ([]model.IsochroneBand, error) {
	if len(bandHours) == 0 {
		return nil, eris.Errorf("isoline: iso4app: no bands requested for centroid %s", c.ID)
	}

	var bands []model.IsochroneBand
	for _, hours := range bandHours {
		poly, err := p.fetchIsoline(ctx, c, hours)
		if err != nil {
			return nil, err
		}
		bands = append(bands, model.IsochroneBand{
			CentroidID: c.ID,
			BandHours:  hours,
			Geometry:   poly,
		})
	}
	return bands, nil
}

func (p *Iso4AppProvider) fetchIsoline(ctx context.Context, c model.Centroid, hours float64) (gogeom.T, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "isoline: iso4app rate limit")
	}

	params := url.Values{
		"licKey":    {p.opts.Key},
		"type":      {"isochrone"},
		"value":     {strconv.Itoa(int(hours*3600 + 0.5))},
		"lat":       {strconv.FormatFloat(c.Lat, 'f', -1, 64)},
		"lng":       {strconv.FormatFloat(c.Lon, 'f', -1, 64)},
		"mobility":  {p.opts.Mobility},
		"speedType": {p.opts.SpeedType},
	}
	if p.opts.SpeedLimit > 0 {
		params.Set("speedLimit", strconv.FormatFloat(p.opts.SpeedLimit, 'f', -1, 64))
	}
	reqURL := p.opts.BaseURL + "?" + params.Encode()

	body, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) ([]byte, error) {
		return p.get(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "isoline: iso4app request for centroid %s", c.ID)
	}

	return extractIsolinePolygon(body, c.ID)
}

func (p *Iso4AppProvider) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "isoline: iso4app build request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "isoline: iso4app request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("isoline: iso4app returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.Transient(err)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

// extractIsolinePolygon pulls the first polygonal feature from an Iso4App
// response. The feature collection mixes the isoline polygon with marker
// points and metadata features.
func extractIsolinePolygon(data []byte, centroidID string) (gogeom.T, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "isoline: iso4app decode response")
	}

	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		switch f.Geometry.(type) {
		case *gogeom.Polygon, *gogeom.MultiPolygon:
			return f.Geometry, nil
		}
	}
	return nil, eris.Errorf("isoline: iso4app: no polygon in response for centroid %s", centroidID)
}
