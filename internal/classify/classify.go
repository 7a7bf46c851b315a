// Package classify assigns each incident a geographic category relative to
// the reference district: inside, bordering (in the buffer but not the
// district), or outside. Boundary geometry is loaded once into an immutable
// snapshot, so classification itself touches no storage and is safe to call
// from many goroutines.
package classify

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/geometry"
	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/store"
)

// ErrNotInitialized is returned when classification is attempted before
// Initialize has loaded the boundary snapshot.
var ErrNotInitialized = eris.New("classify: categorizer not initialized")

// MissingBoundaryError reports that a required active boundary does not
// exist in the store.
type MissingBoundaryError struct {
	Name     string
	Category model.BoundaryCategory
}

func (e *MissingBoundaryError) Error() string {
	return fmt.Sprintf("classify: no active %s boundary named %q", e.Category, e.Name)
}

// snapshot is the immutable boundary state a categorizer classifies against.
// Bounding boxes are precomputed so most points are rejected before any
// exact containment test runs.
type snapshot struct {
	district model.Boundary
	buffer   model.Boundary

	districtBox geometry.BBox
	bufferBox   geometry.BBox
	combined    geometry.BBox
}

// Categorizer classifies coordinates against a district and its buffer.
type Categorizer struct {
	store        store.Store
	districtName string
	bufferName   string
	log          *zap.Logger

	snap *snapshot
}

// New builds a categorizer bound to the named boundaries. Initialize must be
// called before any classification.
func New(s store.Store, districtName, bufferName string) *Categorizer {
	return &Categorizer{
		store:        s,
		districtName: districtName,
		bufferName:   bufferName,
		log:          zap.L().With(zap.String("component", "classify")),
	}
}

// Initialize loads the active district and buffer boundaries and precomputes
// their bounding boxes. A missing boundary is a *MissingBoundaryError.
func (c *Categorizer) Initialize(ctx context.Context) error {
	district, err := c.store.GetBoundary(ctx, c.districtName, model.BoundaryDistrict)
	if err != nil {
		return eris.Wrap(err, "classify: load district boundary")
	}
	if district == nil {
		return &MissingBoundaryError{Name: c.districtName, Category: model.BoundaryDistrict}
	}

	buffer, err := c.store.GetBoundary(ctx, c.bufferName, model.BoundaryBuffer)
	if err != nil {
		return eris.Wrap(err, "classify: load buffer boundary")
	}
	if buffer == nil {
		return &MissingBoundaryError{Name: c.bufferName, Category: model.BoundaryBuffer}
	}

	snap := &snapshot{
		district:    *district,
		buffer:      *buffer,
		districtBox: geometry.BBoxOf(district.Geometry),
		bufferBox:   geometry.BBoxOf(buffer.Geometry),
	}
	snap.combined = snap.districtBox.Union(snap.bufferBox)
	c.snap = snap

	c.log.Info("boundary snapshot loaded",
		zap.String("district", district.ID),
		zap.String("buffer", buffer.ID),
		zap.Float64("min_lng", snap.combined.MinLng),
		zap.Float64("max_lng", snap.combined.MaxLng),
		zap.Float64("min_lat", snap.combined.MinLat),
		zap.Float64("max_lat", snap.combined.MaxLat),
	)
	return nil
}

// Initialized reports whether a boundary snapshot has been loaded.
func (c *Categorizer) Initialized() bool {
	return c.snap != nil
}

// Classify categorizes one coordinate pair. Anything that fails the validity
// guard is outside; then a combined bounding-box check rejects the common
// case cheaply before the exact containment tests run.
func (c *Categorizer) Classify(lat, lng float64) (model.GeoCategory, error) {
	snap := c.snap
	if snap == nil {
		return "", ErrNotInitialized
	}

	if !validCoordinate(lat, lng) {
		return model.CategoryOutside, nil
	}
	if !snap.combined.Contains(lng, lat) {
		return model.CategoryOutside, nil
	}

	if snap.districtBox.Contains(lng, lat) {
		in, err := geometry.Contains(snap.district.Geometry, lng, lat)
		if err != nil {
			return "", eris.Wrap(err, "classify: district containment")
		}
		if in {
			return model.CategoryInside, nil
		}
	}

	if snap.bufferBox.Contains(lng, lat) {
		in, err := geometry.Contains(snap.buffer.Geometry, lng, lat)
		if err != nil {
			return "", eris.Wrap(err, "classify: buffer containment")
		}
		if in {
			return model.CategoryBordering, nil
		}
	}

	return model.CategoryOutside, nil
}

// ClassifyPoint categorizes one incident point. Points without coordinates
// are outside.
func (c *Categorizer) ClassifyPoint(p store.IncidentPoint) (model.GeoCategory, error) {
	if p.Latitude == nil || p.Longitude == nil {
		if c.snap == nil {
			return "", ErrNotInitialized
		}
		return model.CategoryOutside, nil
	}
	return c.Classify(*p.Latitude, *p.Longitude)
}

// ClassifyBatch categorizes a slice of points, producing exactly one update
// per input point in input order.
func (c *Categorizer) ClassifyBatch(points []store.IncidentPoint) ([]store.CategoryUpdate, error) {
	updates := make([]store.CategoryUpdate, len(points))
	for i, p := range points {
		cat, err := c.ClassifyPoint(p)
		if err != nil {
			return nil, err
		}
		updates[i] = store.CategoryUpdate{ID: p.ID, Category: cat}
	}
	return updates, nil
}

// validCoordinate is the validity guard: coordinates must be in WGS84 range,
// and the exact (0, 0) pair is treated as a missing value sentinel rather
// than a real location in the Gulf of Guinea.
func validCoordinate(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	if lat < -90 || lat > 90 {
		return false
	}
	if lng < -180 || lng > 180 {
		return false
	}
	return true
}
