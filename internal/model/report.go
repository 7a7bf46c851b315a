package model

import "time"

// Severity tags an advisory flag raised by the statistical validator.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityInfo   Severity = "INFO"
)

// FlagCode identifies the check that raised a flag.
type FlagCode string

const (
	FlagMissingCoordinates FlagCode = "missing_coordinates"
	FlagInsideShareHigh    FlagCode = "inside_share_high"
	FlagInsideEmpty        FlagCode = "inside_empty"
	FlagBoundsOutsideMetro FlagCode = "bounds_outside_metro"
	FlagOutsideShareLow    FlagCode = "outside_share_low"
	FlagAllChecksPassed    FlagCode = "all_checks_passed"
)

// Flag is an advisory finding about the categorized dataset. Flags are
// surfaced to the operator and never abort processing.
type Flag struct {
	Code     FlagCode `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// CategoryCount holds the count and share of one geo category.
type CategoryCount struct {
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
}

// DatasetStats is the raw aggregate view of the incident table that the
// validator evaluates. All percentages are over TotalIncidents.
type DatasetStats struct {
	TotalIncidents     int64                         `json:"total_incidents"`
	WithCoordinates    int64                         `json:"with_coordinates"`
	CoordinatePercent  float64                       `json:"coordinate_percent"`
	Categories         map[GeoCategory]CategoryCount `json:"categories"`
	Uncategorized      int64                         `json:"uncategorized"`
	MinLatitude        *float64                      `json:"min_latitude,omitempty"`
	MaxLatitude        *float64                      `json:"max_latitude,omitempty"`
	MinLongitude       *float64                      `json:"min_longitude,omitempty"`
	MaxLongitude       *float64                      `json:"max_longitude,omitempty"`
	DuplicateIncidents int64                         `json:"duplicate_incident_numbers"`
	EarliestEntryDate  *time.Time                    `json:"earliest_entry_date,omitempty"`
	LatestEntryDate    *time.Time                    `json:"latest_entry_date,omitempty"`
	DistinctCrimeTypes int64                         `json:"distinct_crime_types"`
}

// ValidationReport is the validator's full output: the dataset statistics
// plus the advisory flags they triggered.
type ValidationReport struct {
	GeneratedAt time.Time    `json:"generated_at" yaml:"generated_at"`
	Stats       DatasetStats `json:"stats" yaml:"stats"`
	Flags       []Flag       `json:"flags" yaml:"flags"`
}

// HighFlags returns only the HIGH-severity flags.
func (r *ValidationReport) HighFlags() []Flag {
	var out []Flag
	for _, f := range r.Flags {
		if f.Severity == SeverityHigh {
			out = append(out, f)
		}
	}
	return out
}
