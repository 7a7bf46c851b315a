package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/store"
)

// stubStore serves boundaries from memory. Only GetBoundary is implemented;
// the embedded interface panics on anything else.
type stubStore struct {
	store.Store
	boundaries map[model.BoundaryCategory]*model.Boundary
}

func (s *stubStore) GetBoundary(_ context.Context, name string, category model.BoundaryCategory) (*model.Boundary, error) {
	b := s.boundaries[category]
	if b == nil || b.Name != name {
		return nil, nil
	}
	return b, nil
}

func polygon(t *testing.T, coords [][]geom.Coord) *geom.Polygon {
	t.Helper()
	p, err := geom.NewPolygon(geom.XY).SetCoords(coords)
	require.NoError(t, err)
	return p
}

// district covers lng [-86.9, -86.7], lat [36.0, 36.2]; the buffer extends
// it by 0.05 degrees on every side.
func newTestCategorizer(t *testing.T) *Categorizer {
	t.Helper()
	district := polygon(t, [][]geom.Coord{{
		{-86.9, 36.0}, {-86.7, 36.0}, {-86.7, 36.2}, {-86.9, 36.2}, {-86.9, 36.0},
	}})
	buffer := polygon(t, [][]geom.Coord{{
		{-86.95, 35.95}, {-86.65, 35.95}, {-86.65, 36.25}, {-86.95, 36.25}, {-86.95, 35.95},
	}})

	c := New(&stubStore{boundaries: map[model.BoundaryCategory]*model.Boundary{
		model.BoundaryDistrict: {ID: "d-1", Name: "district", Category: model.BoundaryDistrict, Geometry: district},
		model.BoundaryBuffer:   {ID: "b-1", Name: "district_buffer", Category: model.BoundaryBuffer, Geometry: buffer},
	}}, "district", "district_buffer")
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func TestClassify_Tiers(t *testing.T) {
	c := newTestCategorizer(t)

	tests := []struct {
		name     string
		lat, lng float64
		want     model.GeoCategory
	}{
		{"district center", 36.1, -86.8, model.CategoryInside},
		{"district edge", 36.0, -86.8, model.CategoryInside},
		{"district corner", 36.2, -86.7, model.CategoryInside},
		{"buffer ring west", 36.1, -86.92, model.CategoryBordering},
		{"buffer ring north", 36.22, -86.8, model.CategoryBordering},
		{"buffer outer edge", 36.25, -86.8, model.CategoryBordering},
		{"just past buffer", 36.26, -86.8, model.CategoryOutside},
		{"same city, far from district", 36.1, -87.5, model.CategoryOutside},
		{"other hemisphere", -33.9, 151.2, model.CategoryOutside},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.lat, tt.lng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_ValidityGuard(t *testing.T) {
	c := newTestCategorizer(t)

	tests := []struct {
		name     string
		lat, lng float64
	}{
		{"null island", 0, 0},
		{"latitude out of range", 91, -86.8},
		{"latitude far out of range", -120, -86.8},
		{"longitude out of range", 36.1, 181},
		{"longitude far out of range", 36.1, -200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.lat, tt.lng)
			require.NoError(t, err)
			assert.Equal(t, model.CategoryOutside, got)
		})
	}
}

func TestClassify_SingleZeroComponentIsValid(t *testing.T) {
	c := newTestCategorizer(t)

	// Only the exact (0, 0) pair is a missing-value sentinel. A coordinate
	// with one zero component is a real location.
	got, err := c.Classify(0, -86.8)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOutside, got)
}

func TestClassifyPoint_MissingCoordinates(t *testing.T) {
	c := newTestCategorizer(t)

	got, err := c.ClassifyPoint(store.IncidentPoint{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOutside, got)

	lat := 36.1
	got, err = c.ClassifyPoint(store.IncidentPoint{ID: 2, Latitude: &lat})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOutside, got)
}

func TestClassifyBatch_OneUpdatePerPoint(t *testing.T) {
	c := newTestCategorizer(t)

	lat1, lng1 := 36.1, -86.8
	lat2, lng2 := 36.22, -86.8
	points := []store.IncidentPoint{
		{ID: 10, Latitude: &lat1, Longitude: &lng1},
		{ID: 11, Latitude: &lat2, Longitude: &lng2},
		{ID: 12},
	}

	updates, err := c.ClassifyBatch(points)
	require.NoError(t, err)
	require.Len(t, updates, len(points))

	assert.Equal(t, store.CategoryUpdate{ID: 10, Category: model.CategoryInside}, updates[0])
	assert.Equal(t, store.CategoryUpdate{ID: 11, Category: model.CategoryBordering}, updates[1])
	assert.Equal(t, store.CategoryUpdate{ID: 12, Category: model.CategoryOutside}, updates[2])

	for _, u := range updates {
		assert.True(t, u.Category.Valid())
	}
}

func TestClassify_DistrictHole(t *testing.T) {
	district := polygon(t, [][]geom.Coord{
		{{-86.9, 36.0}, {-86.7, 36.0}, {-86.7, 36.2}, {-86.9, 36.2}, {-86.9, 36.0}},
		{{-86.85, 36.05}, {-86.75, 36.05}, {-86.75, 36.15}, {-86.85, 36.15}, {-86.85, 36.05}},
	})
	buffer := polygon(t, [][]geom.Coord{{
		{-86.95, 35.95}, {-86.65, 35.95}, {-86.65, 36.25}, {-86.95, 36.25}, {-86.95, 35.95},
	}})

	c := New(&stubStore{boundaries: map[model.BoundaryCategory]*model.Boundary{
		model.BoundaryDistrict: {Name: "district", Category: model.BoundaryDistrict, Geometry: district},
		model.BoundaryBuffer:   {Name: "district_buffer", Category: model.BoundaryBuffer, Geometry: buffer},
	}}, "district", "district_buffer")
	require.NoError(t, c.Initialize(context.Background()))

	// Inside the hole the point is not in the district, but the buffer still
	// covers it, so it lands in bordering.
	got, err := c.Classify(36.1, -86.8)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryBordering, got)

	got, err = c.Classify(36.02, -86.8)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryInside, got)
}

func TestInitialize_MissingBoundaries(t *testing.T) {
	district := polygon(t, [][]geom.Coord{{
		{-86.9, 36.0}, {-86.7, 36.0}, {-86.7, 36.2}, {-86.9, 36.2}, {-86.9, 36.0},
	}})

	t.Run("no district", func(t *testing.T) {
		c := New(&stubStore{boundaries: map[model.BoundaryCategory]*model.Boundary{}},
			"district", "district_buffer")
		err := c.Initialize(context.Background())
		var missing *MissingBoundaryError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "district", missing.Name)
		assert.Equal(t, model.BoundaryDistrict, missing.Category)
	})

	t.Run("no buffer", func(t *testing.T) {
		c := New(&stubStore{boundaries: map[model.BoundaryCategory]*model.Boundary{
			model.BoundaryDistrict: {Name: "district", Category: model.BoundaryDistrict, Geometry: district},
		}}, "district", "district_buffer")
		err := c.Initialize(context.Background())
		var missing *MissingBoundaryError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, model.BoundaryBuffer, missing.Category)
	})
}

func TestClassify_NotInitialized(t *testing.T) {
	c := New(&stubStore{}, "district", "district_buffer")
	assert.False(t, c.Initialized())

	_, err := c.Classify(36.1, -86.8)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.ClassifyPoint(store.IncidentPoint{ID: 1})
	assert.ErrorIs(t, err, ErrNotInitialized)
}
