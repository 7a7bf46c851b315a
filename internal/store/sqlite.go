package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	_ "modernc.org/sqlite"

	"github.com/meridian-civic/districtwatch/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// driver for local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS boundaries (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	geometry   TEXT NOT NULL,
	metadata   TEXT,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS incidents (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	incident_number TEXT NOT NULL UNIQUE,
	address         TEXT,
	latitude        REAL,
	longitude       REAL,
	crime_type      TEXT,
	occurrence_date DATETIME,
	entry_date      DATETIME,
	geo_category    TEXT,
	categorized_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_boundaries_lookup ON boundaries(name, category, is_active);
CREATE INDEX IF NOT EXISTS idx_incidents_geo_category ON incidents(geo_category);
CREATE INDEX IF NOT EXISTS idx_incidents_entry_date ON incidents(entry_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// boundaries

func (s *SQLiteStore) SaveBoundary(ctx context.Context, b *model.Boundary) (string, error) {
	id := uuid.New().String()
	createdAt := time.Now().UTC()

	geomJSON, metaJSON, err := encodeBoundary(b)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO boundaries (id, name, category, geometry, metadata, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?)`,
		id, b.Name, string(b.Category), geomJSON, metaJSON, createdAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert boundary %s/%s", b.Name, b.Category)
	}
	return id, nil
}

func (s *SQLiteStore) GetBoundary(ctx context.Context, name string, category model.BoundaryCategory) (*model.Boundary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, geometry, metadata, is_active, created_at
		 FROM boundaries
		 WHERE name = ? AND category = ? AND is_active = 1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		name, string(category),
	)

	b, err := scanBoundary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get boundary %s/%s", name, category)
	}
	return b, nil
}

func (s *SQLiteStore) ListBoundaries(ctx context.Context, category model.BoundaryCategory) ([]model.Boundary, error) {
	query := `SELECT id, name, category, geometry, metadata, is_active, created_at
		 FROM boundaries WHERE is_active = 1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list boundaries")
	}
	defer rows.Close()

	var out []model.Boundary
	for rows.Next() {
		b, err := scanBoundary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan boundary")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate boundaries")
}

func (s *SQLiteStore) DeactivateBoundary(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE boundaries SET is_active = 0 WHERE id = ?`, id,
	)
	return eris.Wrapf(err, "sqlite: deactivate boundary %s", id)
}

func (s *SQLiteStore) BoundaryExists(ctx context.Context, name string, category model.BoundaryCategory) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM boundaries WHERE name = ? AND category = ? AND is_active = 1`,
		name, string(category),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: boundary exists %s/%s", name, category)
	}
	return n > 0, nil
}

// incidents

func (s *SQLiteStore) UpsertIncidents(ctx context.Context, incidents []model.Incident) (int64, error) {
	if len(incidents) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO incidents (incident_number, address, latitude, longitude, crime_type, occurrence_date, entry_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(incident_number) DO UPDATE SET
			address = excluded.address,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			crime_type = excluded.crime_type,
			occurrence_date = excluded.occurrence_date,
			entry_date = excluded.entry_date`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, inc := range incidents {
		if _, err := stmt.ExecContext(ctx,
			inc.IncidentNumber,
			nullString(inc.Address),
			nullFloat(inc.Latitude),
			nullFloat(inc.Longitude),
			nullString(inc.CrimeType),
			nullTime(inc.OccurrenceDate),
			nullTime(inc.EntryDate),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert incident %s", inc.IncidentNumber)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return n, nil
}

func (s *SQLiteStore) CountIncidents(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count incidents")
}

func (s *SQLiteStore) ListIncidentCoordinates(ctx context.Context, limit, offset int) ([]IncidentPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, latitude, longitude FROM incidents ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list incident coordinates")
	}
	defer rows.Close()

	var points []IncidentPoint
	for rows.Next() {
		var p IncidentPoint
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&p.ID, &lat, &lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan incident point")
		}
		if lat.Valid {
			p.Latitude = &lat.Float64
		}
		if lng.Valid {
			p.Longitude = &lng.Float64
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate incident points")
}

func (s *SQLiteStore) UpdateCategories(ctx context.Context, updates []CategoryUpdate, at time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin category tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE incidents SET geo_category = ?, categorized_at = ? WHERE id = ?`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare category update")
	}
	defer stmt.Close() //nolint:errcheck

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, string(u.Category), at, u.ID); err != nil {
			return eris.Wrapf(err, "sqlite: update category for incident %d", u.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit category tx")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.DatasetStats, error) {
	stats := &model.DatasetStats{
		Categories: make(map[model.GeoCategory]model.CategoryCount),
	}

	// MIN/MAX strip the DATETIME declared type, so the driver hands the
	// aggregate back as text and it is parsed here.
	var minLat, maxLat, minLng, maxLng sql.NullFloat64
	var earliestRaw, latestRaw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(latitude),
		       MIN(latitude), MAX(latitude),
		       MIN(longitude), MAX(longitude),
		       MIN(entry_date), MAX(entry_date),
		       COUNT(DISTINCT crime_type)
		FROM incidents`,
	).Scan(
		&stats.TotalIncidents, &stats.WithCoordinates,
		&minLat, &maxLat, &minLng, &maxLng,
		&earliestRaw, &latestRaw,
		&stats.DistinctCrimeTypes,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: incident stats")
	}
	earliest, err := parseStoredTime(earliestRaw)
	if err != nil {
		return nil, err
	}
	latest, err := parseStoredTime(latestRaw)
	if err != nil {
		return nil, err
	}
	applyStatsBounds(stats, minLat, maxLat, minLng, maxLng, earliest, latest)

	rows, err := s.db.QueryContext(ctx,
		`SELECT geo_category, COUNT(*) FROM incidents GROUP BY geo_category`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: category distribution")
	}
	defer rows.Close()
	for rows.Next() {
		var cat sql.NullString
		var count int64
		if err := rows.Scan(&cat, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category count")
		}
		applyCategoryCount(stats, cat.String, cat.Valid, count)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate category counts")
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT incident_number FROM incidents GROUP BY incident_number HAVING COUNT(*) > 1
		)`,
	).Scan(&stats.DuplicateIncidents)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: duplicate incident numbers")
	}

	finalizeStats(stats)
	return stats, nil
}

func (s *SQLiteStore) SampleByCategory(ctx context.Context, category model.GeoCategory, n int) ([]model.Incident, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_number, address, latitude, longitude, crime_type,
		        occurrence_date, entry_date, geo_category, categorized_at
		 FROM incidents WHERE geo_category = ?
		 ORDER BY RANDOM() LIMIT ?`,
		string(category), n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: sample %s incidents", category)
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sampled incident")
		}
		out = append(out, *inc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate samples")
}

// storedTimeLayouts covers the text forms the sqlite driver writes for
// time.Time values, with and without sub-second precision.
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

func parseStoredTime(v sql.NullString) (sql.NullTime, error) {
	if !v.Valid || v.String == "" {
		return sql.NullTime{}, nil
	}
	for _, layout := range storedTimeLayouts {
		if t, err := time.Parse(layout, v.String); err == nil {
			return sql.NullTime{Time: t, Valid: true}, nil
		}
	}
	return sql.NullTime{}, eris.Errorf("sqlite: unparseable stored time %q", v.String)
}

// helpers shared by both drivers

type scannable interface {
	Scan(dest ...any) error
}

func encodeBoundary(b *model.Boundary) (geomJSON, metaJSON string, err error) {
	gj, err := geojson.Marshal(b.Geometry)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal boundary geometry")
	}
	meta := []byte("{}")
	if b.Metadata != nil {
		meta, err = json.Marshal(b.Metadata)
		if err != nil {
			return "", "", eris.Wrap(err, "store: marshal boundary metadata")
		}
	}
	return string(gj), string(meta), nil
}

func scanBoundary(row scannable) (*model.Boundary, error) {
	var b model.Boundary
	var category, geomJSON string
	var metaJSON sql.NullString
	if err := row.Scan(&b.ID, &b.Name, &category, &geomJSON, &metaJSON, &b.IsActive, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Category = model.BoundaryCategory(category)

	var g geom.T
	if err := geojson.Unmarshal([]byte(geomJSON), &g); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal boundary geometry")
	}
	b.Geometry = g

	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &b.Metadata); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal boundary metadata")
		}
	}
	return &b, nil
}

func scanIncident(row scannable) (*model.Incident, error) {
	var inc model.Incident
	var address, crimeType, category sql.NullString
	var lat, lng sql.NullFloat64
	var occurred, entered, categorized sql.NullTime

	err := row.Scan(
		&inc.ID, &inc.IncidentNumber, &address, &lat, &lng, &crimeType,
		&occurred, &entered, &category, &categorized,
	)
	if err != nil {
		return nil, err
	}

	if address.Valid {
		inc.Address = &address.String
	}
	if lat.Valid {
		inc.Latitude = &lat.Float64
	}
	if lng.Valid {
		inc.Longitude = &lng.Float64
	}
	if crimeType.Valid {
		inc.CrimeType = &crimeType.String
	}
	if occurred.Valid {
		t := occurred.Time
		inc.OccurrenceDate = &t
	}
	if entered.Valid {
		t := entered.Time
		inc.EntryDate = &t
	}
	if category.Valid {
		c := model.GeoCategory(category.String)
		inc.GeoCategory = &c
	}
	if categorized.Valid {
		t := categorized.Time
		inc.CategorizedAt = &t
	}
	return &inc, nil
}

func applyStatsBounds(stats *model.DatasetStats, minLat, maxLat, minLng, maxLng sql.NullFloat64, earliest, latest sql.NullTime) {
	if minLat.Valid {
		stats.MinLatitude = &minLat.Float64
	}
	if maxLat.Valid {
		stats.MaxLatitude = &maxLat.Float64
	}
	if minLng.Valid {
		stats.MinLongitude = &minLng.Float64
	}
	if maxLng.Valid {
		stats.MaxLongitude = &maxLng.Float64
	}
	if earliest.Valid {
		t := earliest.Time
		stats.EarliestEntryDate = &t
	}
	if latest.Valid {
		t := latest.Time
		stats.LatestEntryDate = &t
	}
}

func applyCategoryCount(stats *model.DatasetStats, category string, valid bool, count int64) {
	if !valid || category == "" {
		stats.Uncategorized = count
		return
	}
	stats.Categories[model.GeoCategory(category)] = model.CategoryCount{Count: count}
}

// finalizeStats fills the derived percentage fields once all counts are in.
func finalizeStats(stats *model.DatasetStats) {
	if stats.TotalIncidents == 0 {
		return
	}
	total := float64(stats.TotalIncidents)
	stats.CoordinatePercent = float64(stats.WithCoordinates) / total * 100
	for cat, cc := range stats.Categories {
		cc.Percent = float64(cc.Count) / total * 100
		stats.Categories[cat] = cc
	}
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
