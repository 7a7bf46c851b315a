// Package store persists boundaries and incidents behind a single interface
// with Postgres and SQLite drivers. Boundary rows are append-only with an
// active flag; incidents are keyed by their external incident number.
package store

import (
	"context"
	"time"

	"github.com/meridian-civic/districtwatch/internal/model"
)

// IncidentPoint is the minimal projection the categorizer needs: an id and
// an optional coordinate pair.
type IncidentPoint struct {
	ID        int64
	Latitude  *float64
	Longitude *float64
}

// CategoryUpdate assigns a geo category to one incident.
type CategoryUpdate struct {
	ID       int64
	Category model.GeoCategory
}

// Store is the persistence contract for the categorization system.
// Mutating operations are durable on return; persistence errors propagate
// unchanged and are never retried here.
type Store interface {
	// Boundaries. SaveBoundary inserts a new active row and does not
	// deactivate prior rows: superseding a boundary is the caller's
	// explicit two-step (deactivate, then save). GetBoundary returns the
	// most recently created active match, or nil with no error when none
	// exists. DeactivateBoundary is idempotent.
	SaveBoundary(ctx context.Context, b *model.Boundary) (string, error)
	GetBoundary(ctx context.Context, name string, category model.BoundaryCategory) (*model.Boundary, error)
	ListBoundaries(ctx context.Context, category model.BoundaryCategory) ([]model.Boundary, error)
	DeactivateBoundary(ctx context.Context, id string) error
	BoundaryExists(ctx context.Context, name string, category model.BoundaryCategory) (bool, error)

	// Incidents. UpsertIncidents inserts or updates by incident_number
	// without touching categorization columns. ListIncidentCoordinates
	// pages by id order. UpdateCategories applies one chunk of category
	// assignments in a single transaction.
	UpsertIncidents(ctx context.Context, incidents []model.Incident) (int64, error)
	CountIncidents(ctx context.Context) (int64, error)
	ListIncidentCoordinates(ctx context.Context, limit, offset int) ([]IncidentPoint, error)
	UpdateCategories(ctx context.Context, updates []CategoryUpdate, at time.Time) error
	Stats(ctx context.Context) (*model.DatasetStats, error)
	SampleByCategory(ctx context.Context, category model.GeoCategory, n int) ([]model.Incident, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
