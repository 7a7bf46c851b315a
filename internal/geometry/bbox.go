// Package geometry implements the planar spatial primitives behind the
// geographic categorizer: bounding boxes, point-in-polygon containment,
// fixed-distance dilation, and planar area. All coordinates are WGS84
// degrees (lng, lat); the spatial extent of a single city district is small
// enough that Cartesian-in-degrees tests are exact for our purposes.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// BBox is an axis-aligned geographic bounding box in degrees.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// BBoxOf computes the bounding box of a geometry from its flat coordinates.
func BBoxOf(g geom.T) BBox {
	b := BBox{
		MinLng: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLng: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}
	flat := g.FlatCoords()
	stride := g.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		b.MinLng = math.Min(b.MinLng, flat[i])
		b.MaxLng = math.Max(b.MaxLng, flat[i])
		b.MinLat = math.Min(b.MinLat, flat[i+1])
		b.MaxLat = math.Max(b.MaxLat, flat[i+1])
	}
	return b
}

// Union returns the componentwise union of two boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinLng: math.Min(b.MinLng, o.MinLng),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLng: math.Max(b.MaxLng, o.MaxLng),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
	}
}

// Contains reports whether the point lies inside the box, edges inclusive.
func (b BBox) Contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// Empty reports whether the box covers no area.
func (b BBox) Empty() bool {
	return b.MinLng > b.MaxLng || b.MinLat > b.MaxLat
}
