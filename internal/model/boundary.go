package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// BoundaryCategory distinguishes the reference district polygon from its
// fixed-distance buffer.
type BoundaryCategory string

const (
	BoundaryDistrict BoundaryCategory = "district"
	BoundaryBuffer   BoundaryCategory = "buffer"
)

// Valid reports whether c is a defined boundary category.
func (c BoundaryCategory) Valid() bool {
	return c == BoundaryDistrict || c == BoundaryBuffer
}

// Boundary is a named, versioned spatial region. Rows are append-only:
// superseded boundaries are deactivated, never deleted, so the full history
// of imported and generated geometries is preserved.
type Boundary struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Category  BoundaryCategory `json:"category"`
	Geometry  geom.T           `json:"-"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	IsActive  bool             `json:"is_active"`
	CreatedAt time.Time        `json:"created_at"`
}

// BoundaryStats is the REST-facing summary of an active boundary.
type BoundaryStats struct {
	Name         string           `json:"name"`
	Category     BoundaryCategory `json:"category"`
	AreaSqMeters float64          `json:"area_sq_meters"`
	CreatedAt    time.Time        `json:"created_at"`
}
