// Package model holds the domain types shared across the analysis core,
// ingest, providers, store, and API layers.
package model

import (
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
)

// IsochroneBand is one reachability polygon for one centroid at one travel-time
// threshold. Bands are produced by the isoline providers (or loaded from file),
// harmonized before they reach the analysis core, and never mutated afterwards.
type IsochroneBand struct {
	CentroidID string  `json:"centroid_id"`
	BandHours  float64 `json:"band_hours"`

	// Geometry is a Polygon or MultiPolygon in lon/lat (EPSG:4326).
	// Serialized as GeoJSON at the API boundary, not here.
	Geometry geom.T `json:"-"`
}

// Validate checks the required band fields.
func (b IsochroneBand) Validate() error {
	if b.CentroidID == "" {
		return eris.New("model: band missing centroid_id")
	}
	if b.BandHours <= 0 {
		return eris.Errorf("model: band %s has non-positive band_hours %v", b.CentroidID, b.BandHours)
	}
	if b.Geometry == nil {
		return eris.Errorf("model: band %s has no geometry", b.CentroidID)
	}
	return nil
}

// POI is a point of interest tested for isochrone coverage.
type POI struct {
	ID   string  `json:"id"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"`

	// Metadata carries open-ended attributes, including the optional numeric
	// production value extracted at indexing time.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the required POI fields and coordinate ranges.
func (p POI) Validate() error {
	if p.ID == "" {
		return eris.New("model: poi missing id")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return eris.Errorf("model: poi %s latitude %v out of range", p.ID, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return eris.Errorf("model: poi %s longitude %v out of range", p.ID, p.Lon)
	}
	return nil
}

// Centroid is an isochrone origin submitted to the isoline providers.
type Centroid struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Rho is the maximum travel time in hours.
	Rho float64 `json:"rho"`

	// MaxProduction, when set, is the per-centroid viability cap applied to
	// each band's production sum.
	MaxProduction *float64 `json:"max_production,omitempty"`
}

// BandCoverage reports which POIs a single band contains.
type BandCoverage struct {
	CentroidID         string   `json:"centroid_id"`
	BandHours          float64  `json:"band_hours"`
	BandLabel          string   `json:"band_label"`
	POICount           int      `json:"poi_count"`
	POIIDs             []string `json:"poi_ids"`
	CoveragePercentage float64  `json:"coverage_percentage"`
	ProductionSum      float64  `json:"production_sum"`

	// Viable is nil when no production threshold was supplied for the centroid.
	Viable *bool `json:"viable"`
}

// CentroidCoverage aggregates coverage over all bands of one centroid.
type CentroidCoverage struct {
	CentroidID      string         `json:"centroid_id"`
	TotalBands      int            `json:"total_bands"`
	Bands           []BandCoverage `json:"bands"`
	TotalUniquePOIs int            `json:"total_unique_pois"`
	MaxCoverageBand string         `json:"max_coverage_band"`
}

// CentroidBand identifies one participating band of an intersection.
type CentroidBand struct {
	CentroidID string  `json:"centroid_id"`
	BandHours  float64 `json:"band_hours"`
}

// BandIntersection is the geometric overlap of two or more bands belonging to
// at least two distinct centroids, with the POIs it contains.
type BandIntersection struct {
	IntersectionID      string         `json:"intersection_id"`
	IntersectionLabel   string         `json:"intersection_label"`
	CentroidBands       []CentroidBand `json:"centroid_bands"`
	POICount            int            `json:"poi_count"`
	POIIDs              []string       `json:"poi_ids"`
	IntersectionAreaKm2 float64        `json:"intersection_area_km2"`
	OverlapType         string         `json:"overlap_type"`
}

// IntersectionMatrix partitions all found intersections by participant count.
type IntersectionMatrix struct {
	TotalIntersections       int                `json:"total_intersections"`
	PairwiseIntersections    []BandIntersection `json:"pairwise_intersections"`
	MultiwayIntersections    []BandIntersection `json:"multiway_intersections"`
	MaxOverlapCount          int                `json:"max_overlap_count"`
	TotalIntersectionAreaKm2 *float64           `json:"total_intersection_area_km2"`
}

// OutOfBandAnalysis lists the POIs outside every band.
type OutOfBandAnalysis struct {
	TotalOOBPOIs  int      `json:"total_oob_pois"`
	OOBPOIIDs     []string `json:"oob_poi_ids"`
	OOBPercentage float64  `json:"oob_percentage"`
}

// SpatialAnalysisResult is the complete, immutable output of one analysis call.
type SpatialAnalysisResult struct {
	TotalPOIs      int `json:"total_pois"`
	TotalCentroids int `json:"total_centroids"`
	TotalBands     int `json:"total_bands"`

	NetworkOptimizationIndex *float64 `json:"network_optimization_index"`

	CoverageAnalysis     []CentroidCoverage `json:"coverage_analysis"`
	IntersectionAnalysis IntersectionMatrix `json:"intersection_analysis"`
	OOBAnalysis          OutOfBandAnalysis  `json:"oob_analysis"`

	GlobalCoveragePercentage float64 `json:"global_coverage_percentage"`
	MostCoveredCentroid      *string `json:"most_covered_centroid"`
	AnalysisTimestamp        string  `json:"analysis_timestamp"`
}
