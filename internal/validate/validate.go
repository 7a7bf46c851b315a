// Package validate runs distribution sanity checks over the categorized
// dataset. Its output is advisory: flags tell the operator when the numbers
// look like a boundary or ingestion mistake, but nothing here aborts or
// rolls back a run.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/geometry"
	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/store"
)

// Thresholds are the tunable limits the checks compare against. Percentages
// are over the total incident count.
type Thresholds struct {
	MissingCoordHighPct   float64       // missing-coordinate share above this is HIGH
	MissingCoordMediumPct float64       // above this is MEDIUM
	InsideHighPct         float64       // inside share above this is HIGH
	OutsideLowPct         float64       // outside share below this is MEDIUM
	Metro                 geometry.BBox // expected envelope for observed coordinates
}

// DefaultThresholds returns the reference limits: a correctly sized
// sub-district holds a small minority of city-wide incidents, so a large
// inside share or a small outside share points at a bad boundary.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MissingCoordHighPct:   20,
		MissingCoordMediumPct: 10,
		InsideHighPct:         10,
		OutsideLowPct:         90,
		Metro: geometry.BBox{
			MinLng: -87.3, MinLat: 35.8,
			MaxLng: -86.3, MaxLat: 36.5,
		},
	}
}

// Evaluate applies the flag rules to one set of dataset statistics. It is a
// pure function of its inputs.
func Evaluate(stats *model.DatasetStats, th Thresholds) []model.Flag {
	var flags []model.Flag

	if stats.TotalIncidents == 0 {
		return []model.Flag{{
			Code:     FlagCodeEmpty,
			Severity: model.SeverityInfo,
			Message:  "no incidents in the dataset",
		}}
	}
	total := float64(stats.TotalIncidents)

	missingPct := 100 - stats.CoordinatePercent
	switch {
	case missingPct > th.MissingCoordHighPct:
		flags = append(flags, model.Flag{
			Code:     model.FlagMissingCoordinates,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("%.1f%% of incidents have no coordinates (limit %.0f%%)", missingPct, th.MissingCoordHighPct),
		})
	case missingPct > th.MissingCoordMediumPct:
		flags = append(flags, model.Flag{
			Code:     model.FlagMissingCoordinates,
			Severity: model.SeverityMedium,
			Message:  fmt.Sprintf("%.1f%% of incidents have no coordinates (limit %.0f%%)", missingPct, th.MissingCoordMediumPct),
		})
	}

	inside := stats.Categories[model.CategoryInside]
	insidePct := float64(inside.Count) / total * 100
	if insidePct > th.InsideHighPct {
		flags = append(flags, model.Flag{
			Code:     model.FlagInsideShareHigh,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("%.1f%% of incidents classified inside the district (limit %.0f%%); check the boundary polygon and axis order", insidePct, th.InsideHighPct),
		})
	}
	if inside.Count == 0 {
		flags = append(flags, model.Flag{
			Code:     model.FlagInsideEmpty,
			Severity: model.SeverityHigh,
			Message:  "no incidents classified inside the district; the boundary may be malformed or misplaced",
		})
	}

	if out := boundsOutsideMetro(stats, th.Metro); out != "" {
		flags = append(flags, model.Flag{
			Code:     model.FlagBoundsOutsideMetro,
			Severity: model.SeverityMedium,
			Message:  "observed coordinate bounds fall outside the expected metro envelope: " + out,
		})
	}

	outsidePct := float64(stats.Categories[model.CategoryOutside].Count) / total * 100
	if outsidePct < th.OutsideLowPct {
		flags = append(flags, model.Flag{
			Code:     model.FlagOutsideShareLow,
			Severity: model.SeverityMedium,
			Message:  fmt.Sprintf("only %.1f%% of incidents classified outside (expected at least %.0f%%)", outsidePct, th.OutsideLowPct),
		})
	}

	if len(flags) == 0 {
		flags = append(flags, model.Flag{
			Code:     model.FlagAllChecksPassed,
			Severity: model.SeverityInfo,
			Message:  "all distribution checks passed",
		})
	}
	return flags
}

// FlagCodeEmpty marks an empty dataset. Kept separate from the threshold
// flags because there is nothing to validate yet.
const FlagCodeEmpty model.FlagCode = "dataset_empty"

func boundsOutsideMetro(stats *model.DatasetStats, metro geometry.BBox) string {
	if stats.MinLatitude == nil || stats.MinLongitude == nil {
		return ""
	}
	switch {
	case *stats.MinLatitude < metro.MinLat:
		return fmt.Sprintf("min latitude %.4f < %.4f", *stats.MinLatitude, metro.MinLat)
	case *stats.MaxLatitude > metro.MaxLat:
		return fmt.Sprintf("max latitude %.4f > %.4f", *stats.MaxLatitude, metro.MaxLat)
	case *stats.MinLongitude < metro.MinLng:
		return fmt.Sprintf("min longitude %.4f < %.4f", *stats.MinLongitude, metro.MinLng)
	case *stats.MaxLongitude > metro.MaxLng:
		return fmt.Sprintf("max longitude %.4f > %.4f", *stats.MaxLongitude, metro.MaxLng)
	}
	return ""
}

// Validator pulls dataset statistics from the store and evaluates them.
type Validator struct {
	store      store.Store
	thresholds Thresholds
	log        *zap.Logger
}

// New builds a validator with the given thresholds.
func New(s store.Store, th Thresholds) *Validator {
	return &Validator{
		store:      s,
		thresholds: th,
		log:        zap.L().With(zap.String("component", "validate")),
	}
}

// Report computes dataset statistics and the flags they trigger.
func (v *Validator) Report(ctx context.Context) (*model.ValidationReport, error) {
	stats, err := v.store.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "validate: load dataset stats")
	}

	report := &model.ValidationReport{
		GeneratedAt: time.Now().UTC(),
		Stats:       *stats,
		Flags:       Evaluate(stats, v.thresholds),
	}

	for _, f := range report.Flags {
		if f.Severity == model.SeverityHigh {
			v.log.Warn("validation flag raised",
				zap.String("code", string(f.Code)),
				zap.String("message", f.Message),
			)
		}
	}
	return report, nil
}
