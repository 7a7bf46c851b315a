package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrDegenerateGeometry is returned when a geometry has no area to dilate:
// empty rings, fewer than three distinct vertices, or zero enclosed area.
var ErrDegenerateGeometry = eris.New("geometry: degenerate geometry")

// quadSegments is the number of straight segments used to approximate each
// quarter-turn of a round join. 64 keeps the boundary error far below
// city-block scale.
const quadSegments = 64

// Kilometers per degree of latitude, and per degree of longitude at the
// equator. Longitude is scaled by cos(latitude) at the geometry's reference
// latitude before offsetting.
const (
	kmPerDegLat = 110.574
	kmPerDegLng = 111.320
)

// Buffer returns the outward dilation of a Polygon or MultiPolygon by the
// given distance in kilometers, with round joins at convex vertices. The
// source geometry is projected to a local planar kilometer grid at its mean
// latitude, offset there, and unprojected.
//
// Interior rings are not carried into the result: a dilation only shrinks
// holes, and the buffer is consumed solely as the "bordering" superset zone.
// At strongly reflex vertices the offset ring can pinch; the error is far
// below the 64-segment arc tolerance for municipal district shapes.
func Buffer(g geom.T, km float64) (geom.T, error) {
	if km <= 0 {
		return nil, eris.Errorf("geometry: buffer distance must be positive, got %v", km)
	}

	switch t := g.(type) {
	case *geom.Polygon:
		ring, err := bufferPolygon(t, km)
		if err != nil {
			return nil, err
		}
		out := geom.NewPolygon(geom.XY)
		if err := out.Push(ring); err != nil {
			return nil, eris.Wrap(err, "geometry: assemble buffered polygon")
		}
		return out, nil

	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, eris.Wrap(ErrDegenerateGeometry, "geometry: empty multipolygon")
		}
		out := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < t.NumPolygons(); i++ {
			ring, err := bufferPolygon(t.Polygon(i), km)
			if err != nil {
				return nil, err
			}
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(ring); err != nil {
				return nil, eris.Wrap(err, "geometry: assemble buffered polygon part")
			}
			if err := out.Push(poly); err != nil {
				return nil, eris.Wrap(err, "geometry: assemble buffered multipolygon")
			}
		}
		return out, nil

	default:
		return nil, eris.Wrapf(ErrUnsupportedGeometry, "geometry: buffer on %T", g)
	}
}

// bufferPolygon offsets the exterior ring of one polygon and returns the
// dilated ring in degrees.
func bufferPolygon(p *geom.Polygon, km float64) (*geom.LinearRing, error) {
	if p.NumLinearRings() == 0 {
		return nil, eris.Wrap(ErrDegenerateGeometry, "geometry: polygon without rings")
	}

	pts := ringVertices(p.LinearRing(0))
	if len(pts) < 3 {
		return nil, eris.Wrap(ErrDegenerateGeometry, "geometry: ring with fewer than 3 distinct vertices")
	}
	if math.Abs(shoelace(pts)) < 1e-12 {
		return nil, eris.Wrap(ErrDegenerateGeometry, "geometry: zero-area ring")
	}

	// Project into a local kilometer plane at the ring's mean latitude.
	refLat := meanLatitude(pts)
	local := make([][2]float64, len(pts))
	for i, pt := range pts {
		local[i] = project(pt[0], pt[1], refLat)
	}

	offset := offsetRing(local, km)

	flat := make([]float64, 0, (len(offset)+1)*2)
	for _, pt := range offset {
		lng, lat := unproject(pt[0], pt[1], refLat)
		flat = append(flat, lng, lat)
	}
	// Close the ring.
	flat = append(flat, flat[0], flat[1])

	return geom.NewLinearRingFlat(geom.XY, flat), nil
}

// offsetRing dilates a planar ring by d, inserting round-join arcs at convex
// vertices. The ring is normalized to counterclockwise orientation so the
// outward normal of each edge is to its right.
func offsetRing(pts [][2]float64, d float64) [][2]float64 {
	if shoelace(pts) < 0 {
		reverse(pts)
	}

	n := len(pts)
	var out [][2]float64
	for i := 0; i < n; i++ {
		p := pts[i]
		q := pts[(i+1)%n]
		ex, ey := q[0]-p[0], q[1]-p[1]
		length := math.Hypot(ex, ey)
		if length == 0 {
			continue
		}

		// Outward normal for a CCW ring.
		nx, ny := ey/length, -ex/length
		out = append(out,
			[2]float64{p[0] + nx*d, p[1] + ny*d},
			[2]float64{q[0] + nx*d, q[1] + ny*d},
		)

		// Round join at q covering the exterior angle to the next edge.
		r := pts[(i+2)%n]
		fx, fy := r[0]-q[0], r[1]-q[1]
		if math.Hypot(fx, fy) == 0 {
			continue
		}
		turn := math.Atan2(ex*fy-ey*fx, ex*fx+ey*fy)
		if turn <= 1e-9 {
			continue
		}
		start := math.Atan2(ny, nx)
		steps := int(math.Ceil(float64(quadSegments) * turn / (math.Pi / 2)))
		if steps < 1 {
			steps = 1
		}
		for s := 1; s < steps; s++ {
			a := start + turn*float64(s)/float64(steps)
			out = append(out, [2]float64{q[0] + d*math.Cos(a), q[1] + d*math.Sin(a)})
		}
	}
	return out
}

// ringVertices returns the distinct vertices of a ring, dropping the closing
// duplicate and any consecutive repeats.
func ringVertices(ring *geom.LinearRing) [][2]float64 {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	var pts [][2]float64
	for i := 0; i+1 < len(flat); i += stride {
		pt := [2]float64{flat[i], flat[i+1]}
		if len(pts) > 0 && pts[len(pts)-1] == pt {
			continue
		}
		pts = append(pts, pt)
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// shoelace returns twice the signed area of the ring: positive for
// counterclockwise orientation.
func shoelace(pts [][2]float64) float64 {
	var sum float64
	n := len(pts)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	return sum
}

func meanLatitude(pts [][2]float64) float64 {
	var sum float64
	for _, pt := range pts {
		sum += pt[1]
	}
	return sum / float64(len(pts))
}

func project(lng, lat, refLat float64) [2]float64 {
	return [2]float64{
		lng * kmPerDegLng * math.Cos(refLat*math.Pi/180),
		lat * kmPerDegLat,
	}
}

func unproject(x, y, refLat float64) (lng, lat float64) {
	return x / (kmPerDegLng * math.Cos(refLat*math.Pi/180)), y / kmPerDegLat
}

func reverse(pts [][2]float64) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}
