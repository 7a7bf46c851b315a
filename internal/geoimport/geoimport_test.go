package geoimport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGeoJSON_BareGeometry(t *testing.T) {
	path := writeFile(t, "district.geojson",
		`{"type":"Polygon","coordinates":[[[-86.9,36.0],[-86.7,36.0],[-86.7,36.2],[-86.9,36.2],[-86.9,36.0]]]}`)

	g, err := LoadGeoJSON(path)
	require.NoError(t, err)

	poly, ok := g.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
	assert.Equal(t, geom.Coord{-86.9, 36.0}, poly.Coord(0))
}

func TestLoadGeoJSON_Feature(t *testing.T) {
	path := writeFile(t, "district.geojson",
		`{"type":"Feature","properties":{"name":"district"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`)

	g, err := LoadGeoJSON(path)
	require.NoError(t, err)
	_, ok := g.(*geom.Polygon)
	assert.True(t, ok)
}

func TestLoadGeoJSON_FeatureCollection(t *testing.T) {
	path := writeFile(t, "district.geojson",
		`{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}}]}`)

	g, err := LoadGeoJSON(path)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 1, mp.NumPolygons())
}

func TestLoadGeoJSON_Rejections(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGeoJSON(filepath.Join(t.TempDir(), "absent.geojson"))
		assert.Error(t, err)
	})

	t.Run("empty collection", func(t *testing.T) {
		path := writeFile(t, "empty.geojson", `{"type":"FeatureCollection","features":[]}`)
		_, err := LoadGeoJSON(path)
		assert.ErrorContains(t, err, "no features")
	})

	t.Run("point geometry", func(t *testing.T) {
		path := writeFile(t, "point.geojson", `{"type":"Point","coordinates":[0,0]}`)
		_, err := LoadGeoJSON(path)
		assert.ErrorContains(t, err, "want Polygon or MultiPolygon")
	})
}

// writeTestShapefile writes one clockwise square, optionally with a
// counter-clockwise hole part.
func writeTestShapefile(t *testing.T, withHole bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "district.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	outer := []shp.Point{
		{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0},
	}
	poly := &shp.Polygon{NumParts: 1, Parts: []int32{0}, Points: outer}
	if withHole {
		hole := []shp.Point{
			{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}, {X: 1, Y: 1},
		}
		poly = &shp.Polygon{
			NumParts: 2,
			Parts:    []int32{0, int32(len(outer))},
			Points:   append(outer, hole...),
		}
	}
	poly.NumPoints = int32(len(poly.Points))
	poly.Box = poly.BBox()
	w.Write(poly)
	w.Close()
	return path
}

func TestLoadShapefile(t *testing.T) {
	mp, err := LoadShapefile(writeTestShapefile(t, false))
	require.NoError(t, err)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 1, mp.Polygon(0).NumLinearRings())
}

func TestLoadShapefile_HoleAttachesToOuterRing(t *testing.T) {
	mp, err := LoadShapefile(writeTestShapefile(t, true))
	require.NoError(t, err)
	require.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2, mp.Polygon(0).NumLinearRings())
}

func TestLoadShapefile_MissingFile(t *testing.T) {
	_, err := LoadShapefile(filepath.Join(t.TempDir(), "absent.shp"))
	assert.Error(t, err)
}
