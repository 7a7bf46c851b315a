package model

import "time"

// GeoCategory is the geographic zone an incident falls into relative to the
// reference district and its buffer.
type GeoCategory string

const (
	CategoryInside    GeoCategory = "inside"
	CategoryBordering GeoCategory = "bordering"
	CategoryOutside   GeoCategory = "outside"
)

// AllCategories returns the three categories in reporting order.
func AllCategories() []GeoCategory {
	return []GeoCategory{CategoryInside, CategoryBordering, CategoryOutside}
}

// Valid reports whether c is one of the three defined categories.
func (c GeoCategory) Valid() bool {
	switch c {
	case CategoryInside, CategoryBordering, CategoryOutside:
		return true
	}
	return false
}

// Incident is a single reported crime event with an optional location.
// IncidentNumber is the external identifier and the upsert key; re-ingesting
// the same number updates the row in place.
type Incident struct {
	ID             int64        `json:"id"`
	IncidentNumber string       `json:"incident_number"`
	Address        *string      `json:"address,omitempty"`
	Latitude       *float64     `json:"latitude,omitempty"`
	Longitude      *float64     `json:"longitude,omitempty"`
	CrimeType      *string      `json:"crime_type,omitempty"`
	OccurrenceDate *time.Time   `json:"occurrence_date,omitempty"`
	EntryDate      *time.Time   `json:"entry_date,omitempty"`
	GeoCategory    *GeoCategory `json:"geo_category,omitempty"`
	CategorizedAt  *time.Time   `json:"categorized_at,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
// Coordinates are jointly present or jointly absent by ingest contract.
func (i *Incident) HasCoordinates() bool {
	return i.Latitude != nil && i.Longitude != nil
}
