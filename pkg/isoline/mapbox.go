package isoline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/isolysis/internal/model"
	"github.com/sells-group/isolysis/internal/resilience"
)

const (
	defaultMapboxBaseURL = "https://api.mapbox.com/isochrone/v1"
	defaultMapboxProfile = "driving"

	// Mapbox accepts at most 4 contours per request, each at most 60 minutes.
	mapboxMaxContours   = 4
	mapboxMaxContourMin = 60
)

// MapboxOptions configures the Mapbox isochrone provider.
type MapboxOptions struct {
	Token     string
	BaseURL   string        // default https://api.mapbox.com/isochrone/v1
	Profile   string        // driving, walking, or cycling; default driving
	RateLimit float64       // requests per second; default 5
	Timeout   time.Duration // default 30s
	Retry     resilience.RetryConfig
}

// MapboxProvider computes isochrones via the Mapbox Isochrone API.
type MapboxProvider struct {
	opts    MapboxOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewMapboxProvider creates a MapboxProvider with the given options.
func NewMapboxProvider(opts MapboxOptions) *MapboxProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultMapboxBaseURL
	}
	if opts.Profile == "" {
		opts.Profile = defaultMapboxProfile
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &MapboxProvider{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}
}

// Name implements Provider.
func (p *MapboxProvider) Name() string { return "mapbox" }

// Available implements Provider.
func (p *MapboxProvider) Available() bool { return p.opts.Token != "" }

// Isochrones implements Provider. Bands are converted to whole minutes and
// requested in chunks of at most four contours; bands beyond the Mapbox
// 60-minute ceiling are skipped with a warning.
func (p *MapboxProvider) Isochrones(ctx context.Context, c model.Centroid, bandHours []float64) ([]model.IsochroneBand, error) {
	minutes, minuteToHours := mapboxContourMinutes(c.ID, bandHours)
	if len(minutes) == 0 {
		return nil, eris.Errorf("isoline: mapbox: no bands within %d minute limit for centroid %s", mapboxMaxContourMin, c.ID)
	}

	var bands []model.IsochroneBand
	for start := 0; start < len(minutes); start += mapboxMaxContours {
		end := min(start+mapboxMaxContours, len(minutes))
		chunk, err := p.fetchContours(ctx, c, minutes[start:end], minuteToHours)
		if err != nil {
			return nil, err
		}
		bands = append(bands, chunk...)
	}
	return bands, nil
}

// mapboxContourMinutes converts band hours to distinct whole minutes in
// ascending order, dropping bands beyond the API ceiling. The returned map
// recovers the original band hours from a contour's minute value.
func mapboxContourMinutes(centroidID string, bandHours []float64) ([]int, map[int]float64) {
	var minutes []int
	minuteToHours := make(map[int]float64, len(bandHours))
	for _, h := range bandHours {
		m := int(h*60 + 0.5)
		if m <= 0 {
			continue
		}
		if m > mapboxMaxContourMin {
			zap.L().Warn("isoline: mapbox: band exceeds contour limit, skipping",
				zap.String("centroid_id", centroidID),
				zap.Float64("band_hours", h),
			)
			continue
		}
		if _, seen := minuteToHours[m]; seen {
			continue
		}
		minuteToHours[m] = h
		minutes = append(minutes, m)
	}
	return minutes, minuteToHours
}

func (p *MapboxProvider) fetchContours(ctx context.Context, c model.Centroid, minutes []int, minuteToHours map[int]float64) ([]model.IsochroneBand, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "isoline: mapbox rate limit")
	}

	strs := make([]string, len(minutes))
	for i, m := range minutes {
		strs[i] = strconv.Itoa(m)
	}
	params := url.Values{
		"contours_minutes": {strings.Join(strs, ",")},
		"polygons":         {"true"},
		"access_token":     {p.opts.Token},
	}
	reqURL := fmt.Sprintf("%s/mapbox/%s/%s?%s",
		strings.TrimSuffix(p.opts.BaseURL, "/"),
		p.opts.Profile,
		formatLonLat(c.Lon, c.Lat),
		params.Encode(),
	)

	body, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) ([]byte, error) {
		return p.get(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "isoline: mapbox request for centroid %s", c.ID)
	}

	all, err := BandsFromFeatureCollection(body, c.ID)
	if err != nil {
		return nil, err
	}

	// Mapbox reports each contour in minutes; map it back to the exact band
	// hours that were requested.
	for i := range all {
		m := int(all[i].BandHours*60 + 0.5)
		if h, ok := minuteToHours[m]; ok {
			all[i].BandHours = h
		}
	}
	return all, nil
}

func (p *MapboxProvider) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "isoline: mapbox build request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "isoline: mapbox request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("isoline: mapbox returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.Transient(err)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

func formatLonLat(lon, lat float64) string {
	return strconv.FormatFloat(lon, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
}
