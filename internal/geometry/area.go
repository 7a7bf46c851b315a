package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// AreaSquareMeters computes the planar area of a Polygon or MultiPolygon in
// square meters, scaling degree-space area at the geometry's mean latitude.
// Holes are subtracted. Accurate to well under a percent at district scale.
func AreaSquareMeters(g geom.T) (float64, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonAreaSqM(t), nil
	case *geom.MultiPolygon:
		var total float64
		for i := 0; i < t.NumPolygons(); i++ {
			total += polygonAreaSqM(t.Polygon(i))
		}
		return total, nil
	default:
		return 0, eris.Wrapf(ErrUnsupportedGeometry, "geometry: area of %T", g)
	}
}

func polygonAreaSqM(p *geom.Polygon) float64 {
	if p.NumLinearRings() == 0 {
		return 0
	}

	exterior := ringVertices(p.LinearRing(0))
	if len(exterior) < 3 {
		return 0
	}
	refLat := meanLatitude(exterior)
	mPerDegLng := kmPerDegLng * 1000 * math.Cos(refLat*math.Pi/180)
	mPerDegLat := kmPerDegLat * 1000

	area := math.Abs(shoelace(exterior)) / 2
	for i := 1; i < p.NumLinearRings(); i++ {
		hole := ringVertices(p.LinearRing(i))
		if len(hole) >= 3 {
			area -= math.Abs(shoelace(hole)) / 2
		}
	}
	if area < 0 {
		area = 0
	}
	return area * mPerDegLng * mPerDegLat
}
