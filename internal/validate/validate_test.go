package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/store"
)

func fptr(f float64) *float64 { return &f }

// healthyStats matches the reference distribution: a small inside share, a
// dominant outside share, near-complete geocoding, bounds within the metro.
func healthyStats() *model.DatasetStats {
	return &model.DatasetStats{
		TotalIncidents:    10000,
		WithCoordinates:   9800,
		CoordinatePercent: 98,
		Categories: map[model.GeoCategory]model.CategoryCount{
			model.CategoryInside:    {Count: 200, Percent: 2},
			model.CategoryBordering: {Count: 300, Percent: 3},
			model.CategoryOutside:   {Count: 9500, Percent: 95},
		},
		MinLatitude:  fptr(36.0),
		MaxLatitude:  fptr(36.3),
		MinLongitude: fptr(-87.0),
		MaxLongitude: fptr(-86.5),
	}
}

func codes(flags []model.Flag) []model.FlagCode {
	out := make([]model.FlagCode, len(flags))
	for i, f := range flags {
		out[i] = f.Code
	}
	return out
}

func severityOf(t *testing.T, flags []model.Flag, code model.FlagCode) model.Severity {
	t.Helper()
	for _, f := range flags {
		if f.Code == code {
			return f.Severity
		}
	}
	t.Fatalf("flag %s not raised", code)
	return ""
}

func TestEvaluate_AllChecksPassed(t *testing.T) {
	flags := Evaluate(healthyStats(), DefaultThresholds())
	require.Len(t, flags, 1)
	assert.Equal(t, model.FlagAllChecksPassed, flags[0].Code)
	assert.Equal(t, model.SeverityInfo, flags[0].Severity)
}

func TestEvaluate_MissingCoordinates(t *testing.T) {
	stats := healthyStats()

	stats.CoordinatePercent = 85 // 15% missing
	flags := Evaluate(stats, DefaultThresholds())
	assert.Equal(t, model.SeverityMedium, severityOf(t, flags, model.FlagMissingCoordinates))

	stats.CoordinatePercent = 70 // 30% missing
	flags = Evaluate(stats, DefaultThresholds())
	assert.Equal(t, model.SeverityHigh, severityOf(t, flags, model.FlagMissingCoordinates))
}

func TestEvaluate_InsideShareHigh(t *testing.T) {
	stats := healthyStats()
	stats.Categories[model.CategoryInside] = model.CategoryCount{Count: 2000, Percent: 20}
	stats.Categories[model.CategoryOutside] = model.CategoryCount{Count: 7700, Percent: 77}

	flags := Evaluate(stats, DefaultThresholds())
	assert.Equal(t, model.SeverityHigh, severityOf(t, flags, model.FlagInsideShareHigh))
	assert.Equal(t, model.SeverityMedium, severityOf(t, flags, model.FlagOutsideShareLow))
	assert.NotContains(t, codes(flags), model.FlagAllChecksPassed)
}

func TestEvaluate_InsideEmpty(t *testing.T) {
	stats := healthyStats()
	stats.Categories[model.CategoryInside] = model.CategoryCount{}
	stats.Categories[model.CategoryOutside] = model.CategoryCount{Count: 9700, Percent: 97}

	flags := Evaluate(stats, DefaultThresholds())
	assert.Equal(t, model.SeverityHigh, severityOf(t, flags, model.FlagInsideEmpty))
}

func TestEvaluate_BoundsOutsideMetro(t *testing.T) {
	stats := healthyStats()
	stats.MaxLongitude = fptr(-75.1) // far east of the metro

	flags := Evaluate(stats, DefaultThresholds())
	assert.Equal(t, model.SeverityMedium, severityOf(t, flags, model.FlagBoundsOutsideMetro))
}

func TestEvaluate_BoundsSkippedWithoutCoordinates(t *testing.T) {
	stats := healthyStats()
	stats.MinLatitude = nil
	stats.MinLongitude = nil
	stats.MaxLatitude = nil
	stats.MaxLongitude = nil

	flags := Evaluate(stats, DefaultThresholds())
	assert.NotContains(t, codes(flags), model.FlagBoundsOutsideMetro)
}

func TestEvaluate_EmptyDataset(t *testing.T) {
	flags := Evaluate(&model.DatasetStats{}, DefaultThresholds())
	require.Len(t, flags, 1)
	assert.Equal(t, FlagCodeEmpty, flags[0].Code)
	assert.Equal(t, model.SeverityInfo, flags[0].Severity)
}

// statsStore returns canned statistics.
type statsStore struct {
	store.Store
	stats *model.DatasetStats
}

func (s *statsStore) Stats(context.Context) (*model.DatasetStats, error) {
	return s.stats, nil
}

func TestValidator_Report(t *testing.T) {
	v := New(&statsStore{stats: healthyStats()}, DefaultThresholds())

	report, err := v.Report(context.Background())
	require.NoError(t, err)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.EqualValues(t, 10000, report.Stats.TotalIncidents)
	require.Len(t, report.Flags, 1)
	assert.Empty(t, report.HighFlags())
}
