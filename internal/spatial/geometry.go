// Package spatial implements the isochrone coverage and overlap analysis core:
// point-in-polygon spatial joins, n-way band intersections, out-of-coverage
// detection, and the derived network optimization index.
package spatial

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	gogeom "github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

const webMercatorRadiusM = 6378137.0

// toPolygon flattens a go-geom Polygon or MultiPolygon (lon/lat) into a single
// ring set suitable for the boolean-op and containment routines.
func toPolygon(t gogeom.T) (geom.Polygon, error) {
	switch g := t.(type) {
	case *gogeom.Polygon:
		return ringsToPolygon(g), nil
	case *gogeom.MultiPolygon:
		var out geom.Polygon
		for i := 0; i < g.NumPolygons(); i++ {
			out = append(out, ringsToPolygon(g.Polygon(i))...)
		}
		if len(out) == 0 {
			return nil, eris.New("spatial: empty multipolygon")
		}
		return out, nil
	case nil:
		return nil, eris.New("spatial: nil geometry")
	default:
		return nil, eris.Errorf("spatial: unsupported geometry type %T", t)
	}
}

func ringsToPolygon(p *gogeom.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		coords := p.LinearRing(i).Coords()
		ring := make([]geom.Point, 0, len(coords))
		for _, c := range coords {
			ring = append(ring, geom.Point{X: c.X(), Y: c.Y()})
		}
		if len(ring) >= 3 {
			out = append(out, ring)
		}
	}
	return out
}

// AreaKm2 returns the area of a lon/lat polygon in square kilometers by
// projecting to Web Mercator first. On projection failure it falls back to the
// raw planar area of the unprojected rings; if that is degenerate too it
// returns 0. It never panics.
func AreaKm2(p geom.Polygon) (area float64) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("spatial: area computation panicked", zap.Any("cause", r))
			area = 0
		}
	}()

	if len(p) == 0 {
		return 0
	}

	proj, err := projectWebMercator(p)
	if err == nil {
		a := math.Abs(proj.Area()) / 1e6
		if !math.IsNaN(a) && !math.IsInf(a, 0) {
			return a
		}
	}

	a := math.Abs(p.Area())
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	return a
}

// projectWebMercator applies the spherical Web Mercator forward transform to
// every vertex. Latitudes at or beyond the poles have no finite projection and
// are reported as an error.
func projectWebMercator(p geom.Polygon) (geom.Polygon, error) {
	out := make(geom.Polygon, len(p))
	for i, ring := range p {
		out[i] = make([]geom.Point, len(ring))
		for j, pt := range ring {
			x := webMercatorRadiusM * pt.X * math.Pi / 180
			y := webMercatorRadiusM * math.Log(math.Tan(math.Pi/4+pt.Y*math.Pi/360))
			if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
				return nil, eris.Errorf("spatial: vertex (%v, %v) not projectable", pt.X, pt.Y)
			}
			out[i][j] = geom.Point{X: x, Y: y}
		}
	}
	return out, nil
}

// IntersectAll computes the geometric intersection of two or more polygons by
// iterative pairwise clipping, short-circuiting as soon as an intermediate
// result is empty. Clipping failures surface as errors rather than panics so
// callers can skip the offending combination.
func IntersectAll(polys []geom.Polygon) (geom.Polygon, error) {
	if len(polys) == 0 {
		return nil, nil
	}

	result := polys[0]
	for _, p := range polys[1:] {
		if len(result) == 0 {
			return nil, nil
		}
		next, err := intersectPair(result, p)
		if err != nil {
			return nil, err
		}
		result = next
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// intersectPair clips a against b. The clipping algorithm tolerates ring
// self-intersections; anything it cannot handle is converted from a panic into
// an error.
func intersectPair(a, b geom.Polygon) (out geom.Polygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = eris.Errorf("spatial: polygon intersection failed: %v", r)
		}
	}()
	out = a.Intersection(b).(geom.Polygon)
	return out, nil
}

// boundsOverlap reports whether two bounding boxes overlap. Used to discard
// band combinations before running the exact (and far more expensive)
// geometric intersection.
func boundsOverlap(a, b *geom.Bounds) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y
}
