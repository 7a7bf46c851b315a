package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrUnsupportedGeometry is returned when a containment test is asked about
// a geometry type other than Polygon or MultiPolygon.
var ErrUnsupportedGeometry = eris.New("geometry: unsupported geometry type")

// Contains runs a ray-casting point-in-polygon test against a Polygon or
// MultiPolygon, with holes supported. Points exactly on a ring edge or
// vertex are treated as inside: the region is closed, so a point on the
// district line belongs to the district.
func Contains(g geom.T, lng, lat float64) (bool, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, lng, lat), nil
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), lng, lat) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, eris.Wrapf(ErrUnsupportedGeometry, "geometry: contains on %T", g)
	}
}

// polygonContains tests one polygon: inside the exterior ring and not
// strictly inside any hole. Hole boundaries count as inside because they are
// part of the closed region.
func polygonContains(p *geom.Polygon, lng, lat float64) bool {
	if p.NumLinearRings() == 0 {
		return false
	}

	inside, onEdge := ringContains(p.LinearRing(0), lng, lat)
	if onEdge {
		return true
	}
	if !inside {
		return false
	}

	for i := 1; i < p.NumLinearRings(); i++ {
		holeInside, holeEdge := ringContains(p.LinearRing(i), lng, lat)
		if holeEdge {
			return true
		}
		if holeInside {
			return false
		}
	}
	return true
}

// ringContains runs the even-odd crossing test for a single ring and also
// reports whether the point lies exactly on the ring.
func ringContains(ring *geom.LinearRing, lng, lat float64) (inside, onEdge bool) {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	n := len(flat) / stride
	if n < 3 {
		return false, false
	}

	j := n - 1
	for i := 0; i < n; i++ {
		x1, y1 := flat[j*stride], flat[j*stride+1]
		x2, y2 := flat[i*stride], flat[i*stride+1]

		if onSegment(x1, y1, x2, y2, lng, lat) {
			return false, true
		}

		// Standard even-odd crossing: does the edge straddle the horizontal
		// ray at lat, with the crossing to the right of lng?
		if (y1 > lat) != (y2 > lat) {
			xCross := x1 + (lat-y1)*(x2-x1)/(y2-y1)
			if lng < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside, false
}

// onSegment reports whether (px, py) lies on the closed segment
// (x1, y1)-(x2, y2) within a small collinearity tolerance.
func onSegment(x1, y1, x2, y2, px, py float64) bool {
	const eps = 1e-12
	cross := (x2-x1)*(py-y1) - (y2-y1)*(px-x1)
	if cross > eps || cross < -eps {
		return false
	}
	if px < min2(x1, x2)-eps || px > max2(x1, x2)+eps {
		return false
	}
	if py < min2(y1, y2)-eps || py > max2(y1, y2)+eps {
		return false
	}
	return true
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
