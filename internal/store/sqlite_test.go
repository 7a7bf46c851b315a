package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/meridian-civic/districtwatch/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testPolygon(t *testing.T, coords [][]geom.Coord) *geom.Polygon {
	t.Helper()
	p, err := geom.NewPolygon(geom.XY).SetCoords(coords)
	require.NoError(t, err)
	return p
}

func unitSquarePolygon(t *testing.T) *geom.Polygon {
	return testPolygon(t, [][]geom.Coord{{
		{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0},
	}})
}

func strPtr(s string) *string       { return &s }
func floatPtr(f float64) *float64   { return &f }
func timePtr(t time.Time) *time.Time { return &t }

func TestSQLite_BoundaryLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exists, err := s.BoundaryExists(ctx, "district", model.BoundaryDistrict)
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := s.GetBoundary(ctx, "district", model.BoundaryDistrict)
	require.NoError(t, err)
	assert.Nil(t, got)

	id, err := s.SaveBoundary(ctx, &model.Boundary{
		Name:     "district",
		Category: model.BoundaryDistrict,
		Geometry: unitSquarePolygon(t),
		Metadata: map[string]any{"source": "import"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	exists, err = s.BoundaryExists(ctx, "district", model.BoundaryDistrict)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err = s.GetBoundary(ctx, "district", model.BoundaryDistrict)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "district", got.Name)
	assert.True(t, got.IsActive)
	assert.Equal(t, "import", got.Metadata["source"])

	poly, ok := got.Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, geom.Coord{0, 0}, poly.Coord(0))

	list, err := s.ListBoundaries(ctx, model.BoundaryDistrict)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeactivateBoundary(ctx, id))
	require.NoError(t, s.DeactivateBoundary(ctx, id)) // idempotent

	got, err = s.GetBoundary(ctx, "district", model.BoundaryDistrict)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_GetBoundary_LatestWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveBoundary(ctx, &model.Boundary{
		Name:     "district",
		Category: model.BoundaryDistrict,
		Geometry: unitSquarePolygon(t),
	})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	wider := testPolygon(t, [][]geom.Coord{{
		{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0},
	}})
	newID, err := s.SaveBoundary(ctx, &model.Boundary{
		Name:     "district",
		Category: model.BoundaryDistrict,
		Geometry: wider,
	})
	require.NoError(t, err)

	got, err := s.GetBoundary(ctx, "district", model.BoundaryDistrict)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newID, got.ID)

	// Both versions stay on the list until deactivated.
	list, err := s.ListBoundaries(ctx, model.BoundaryDistrict)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSQLite_UpsertIncidents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entry := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n, err := s.UpsertIncidents(ctx, []model.Incident{
		{
			IncidentNumber: "25-001234",
			Address:        strPtr("100 Main St"),
			Latitude:       floatPtr(36.15),
			Longitude:      floatPtr(-86.78),
			CrimeType:      strPtr("BURGLARY"),
			EntryDate:      timePtr(entry),
		},
		{IncidentNumber: "25-001235"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := s.CountIncidents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	points, err := s.ListIncidentCoordinates(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, points, 2)

	require.NoError(t, s.UpdateCategories(ctx, []CategoryUpdate{
		{ID: points[0].ID, Category: model.CategoryInside},
	}, time.Now().UTC()))

	// Re-ingesting the same incident number updates fields in place and
	// leaves the assigned category alone.
	n, err = s.UpsertIncidents(ctx, []model.Incident{
		{
			IncidentNumber: "25-001234",
			Address:        strPtr("102 Main St"),
			Latitude:       floatPtr(36.16),
			Longitude:      floatPtr(-86.79),
		},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err = s.CountIncidents(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	sampled, err := s.SampleByCategory(ctx, model.CategoryInside, 10)
	require.NoError(t, err)
	require.Len(t, sampled, 1)
	assert.Equal(t, "25-001234", sampled[0].IncidentNumber)
	require.NotNil(t, sampled[0].Address)
	assert.Equal(t, "102 Main St", *sampled[0].Address)
	require.NotNil(t, sampled[0].GeoCategory)
	assert.Equal(t, model.CategoryInside, *sampled[0].GeoCategory)
}

func TestSQLite_ListIncidentCoordinates_Paging(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var incidents []model.Incident
	for i := 0; i < 5; i++ {
		incidents = append(incidents, model.Incident{
			IncidentNumber: "25-00000" + string(rune('1'+i)),
			Latitude:       floatPtr(36.0 + float64(i)*0.01),
			Longitude:      floatPtr(-86.0),
		})
	}
	_, err := s.UpsertIncidents(ctx, incidents)
	require.NoError(t, err)

	first, err := s.ListIncidentCoordinates(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := s.ListIncidentCoordinates(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Greater(t, second[0].ID, first[1].ID)

	last, err := s.ListIncidentCoordinates(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, last, 1)
}

func TestSQLite_UpdateCategories_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.UpsertIncidents(ctx, []model.Incident{
		{IncidentNumber: "25-009001", Latitude: floatPtr(36.1), Longitude: floatPtr(-86.7)},
	})
	require.NoError(t, err)

	points, err := s.ListIncidentCoordinates(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	id := points[0].ID

	first := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateCategories(ctx, []CategoryUpdate{
		{ID: id, Category: model.CategoryOutside},
	}, first))

	second := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateCategories(ctx, []CategoryUpdate{
		{ID: id, Category: model.CategoryInside},
	}, second))

	sampled, err := s.SampleByCategory(ctx, model.CategoryInside, 1)
	require.NoError(t, err)
	require.Len(t, sampled, 1)
	require.NotNil(t, sampled[0].CategorizedAt)
	assert.True(t, sampled[0].CategorizedAt.Equal(second))

	outside, err := s.SampleByCategory(ctx, model.CategoryOutside, 1)
	require.NoError(t, err)
	assert.Empty(t, outside)
}

func TestSQLite_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalIncidents)
	assert.Zero(t, stats.CoordinatePercent)

	entry1 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	entry2 := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
	_, err = s.UpsertIncidents(ctx, []model.Incident{
		{
			IncidentNumber: "25-000001",
			Latitude:       floatPtr(36.10), Longitude: floatPtr(-86.80),
			CrimeType: strPtr("THEFT"), EntryDate: timePtr(entry1),
		},
		{
			IncidentNumber: "25-000002",
			Latitude:       floatPtr(36.20), Longitude: floatPtr(-86.70),
			CrimeType: strPtr("ASSAULT"), EntryDate: timePtr(entry2),
		},
		{IncidentNumber: "25-000003", CrimeType: strPtr("THEFT")},
		{IncidentNumber: "25-000004"},
	})
	require.NoError(t, err)

	points, err := s.ListIncidentCoordinates(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, points, 4)
	require.NoError(t, s.UpdateCategories(ctx, []CategoryUpdate{
		{ID: points[0].ID, Category: model.CategoryInside},
		{ID: points[1].ID, Category: model.CategoryOutside},
		{ID: points[2].ID, Category: model.CategoryOutside},
	}, time.Now().UTC()))

	stats, err = s.Stats(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 4, stats.TotalIncidents)
	assert.EqualValues(t, 2, stats.WithCoordinates)
	assert.InDelta(t, 50.0, stats.CoordinatePercent, 0.001)
	assert.EqualValues(t, 1, stats.Uncategorized)
	assert.EqualValues(t, 1, stats.Categories[model.CategoryInside].Count)
	assert.InDelta(t, 25.0, stats.Categories[model.CategoryInside].Percent, 0.001)
	assert.EqualValues(t, 2, stats.Categories[model.CategoryOutside].Count)
	assert.EqualValues(t, 2, stats.DistinctCrimeTypes)
	assert.Zero(t, stats.DuplicateIncidents)

	require.NotNil(t, stats.MinLatitude)
	assert.InDelta(t, 36.10, *stats.MinLatitude, 1e-9)
	require.NotNil(t, stats.MaxLongitude)
	assert.InDelta(t, -86.70, *stats.MaxLongitude, 1e-9)
	require.NotNil(t, stats.EarliestEntryDate)
	assert.True(t, stats.EarliestEntryDate.Equal(entry1))
	require.NotNil(t, stats.LatestEntryDate)
	assert.True(t, stats.LatestEntryDate.Equal(entry2))
}

func TestSQLite_SampleByCategory_LimitsToN(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var incidents []model.Incident
	for i := 0; i < 10; i++ {
		incidents = append(incidents, model.Incident{
			IncidentNumber: "25-01000" + string(rune('0'+i)),
			Latitude:       floatPtr(36.1),
			Longitude:      floatPtr(-86.7),
		})
	}
	_, err := s.UpsertIncidents(ctx, incidents)
	require.NoError(t, err)

	points, err := s.ListIncidentCoordinates(ctx, 10, 0)
	require.NoError(t, err)
	updates := make([]CategoryUpdate, len(points))
	for i, p := range points {
		updates[i] = CategoryUpdate{ID: p.ID, Category: model.CategoryBordering}
	}
	require.NoError(t, s.UpdateCategories(ctx, updates, time.Now().UTC()))

	sampled, err := s.SampleByCategory(ctx, model.CategoryBordering, 3)
	require.NoError(t, err)
	assert.Len(t, sampled, 3)
}
