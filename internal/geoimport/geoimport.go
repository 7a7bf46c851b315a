// Package geoimport loads boundary geometry from the two formats district
// polygons arrive in: GeoJSON files and ESRI shapefiles.
package geoimport

import (
	"encoding/json"
	"os"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// LoadGeoJSON reads a Polygon or MultiPolygon from a GeoJSON file. A bare
// geometry, a Feature, or a FeatureCollection (first feature) are all
// accepted.
func LoadGeoJSON(path string) (geom.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geoimport: read %s", path)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrapf(err, "geoimport: parse %s", path)
	}

	var g geom.T
	switch head.Type {
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrapf(err, "geoimport: parse feature in %s", path)
		}
		g = f.Geometry
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrapf(err, "geoimport: parse feature collection in %s", path)
		}
		if len(fc.Features) == 0 {
			return nil, eris.Errorf("geoimport: no features in %s", path)
		}
		g = fc.Features[0].Geometry
	default:
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(err, "geoimport: parse geometry in %s", path)
		}
	}

	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g, nil
	default:
		return nil, eris.Errorf("geoimport: %s holds a %T, want Polygon or MultiPolygon", path, g)
	}
}

// LoadShapefile reads every polygon record from a shapefile and merges them
// into one MultiPolygon. Shapefile ring order is clockwise for outer rings
// and counter-clockwise for holes; holes attach to the preceding outer ring.
func LoadShapefile(path string) (*geom.MultiPolygon, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geoimport: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	mp := geom.NewMultiPolygon(geom.XY)
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		if err := appendShapePolygons(mp, poly); err != nil {
			return nil, err
		}
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geoimport: read shapefile %s", path)
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.Errorf("geoimport: no polygon records in %s", path)
	}
	return mp, nil
}

func appendShapePolygons(mp *geom.MultiPolygon, p *shp.Polygon) error {
	parts := make([]int32, 0, p.NumParts+1)
	parts = append(parts, p.Parts...)
	parts = append(parts, int32(len(p.Points)))

	var current [][]geom.Coord
	flush := func() error {
		if current == nil {
			return nil
		}
		poly, err := geom.NewPolygon(geom.XY).SetCoords(current)
		if err != nil {
			return eris.Wrap(err, "geoimport: build polygon")
		}
		current = nil
		return mp.Push(poly)
	}

	for i := 0; i < int(p.NumParts); i++ {
		ring := ringCoords(p.Points[parts[i]:parts[i+1]])
		if len(ring) < 4 {
			continue
		}
		if signedArea(ring) < 0 {
			// Clockwise: a new outer ring.
			if err := flush(); err != nil {
				return err
			}
			current = [][]geom.Coord{ring}
		} else if current != nil {
			current = append(current, ring)
		}
	}
	return flush()
}

func ringCoords(points []shp.Point) []geom.Coord {
	coords := make([]geom.Coord, 0, len(points)+1)
	for _, pt := range points {
		coords = append(coords, geom.Coord{pt.X, pt.Y})
	}
	if len(coords) > 0 && !coords[0].Equal(geom.XY, coords[len(coords)-1]) {
		coords = append(coords, coords[0])
	}
	return coords
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}
