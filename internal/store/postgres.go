package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/meridian-civic/districtwatch/internal/db"
	"github.com/meridian-civic/districtwatch/internal/model"
)

// PostgresStore implements Store on top of a pgx pool. The pool is held as
// the db.Pool interface so tests can inject pgxmock.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to the given database URL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse database url")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS boundaries (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	geometry   TEXT NOT NULL,
	metadata   JSONB,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS incidents (
	id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	incident_number TEXT NOT NULL UNIQUE,
	address         TEXT,
	latitude        DOUBLE PRECISION,
	longitude       DOUBLE PRECISION,
	crime_type      TEXT,
	occurrence_date TIMESTAMPTZ,
	entry_date      TIMESTAMPTZ,
	geo_category    TEXT,
	categorized_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_boundaries_lookup ON boundaries(name, category, is_active);
CREATE INDEX IF NOT EXISTS idx_incidents_geo_category ON incidents(geo_category);
CREATE INDEX IF NOT EXISTS idx_incidents_entry_date ON incidents(entry_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// boundaries

func (s *PostgresStore) SaveBoundary(ctx context.Context, b *model.Boundary) (string, error) {
	id := uuid.New().String()
	createdAt := time.Now().UTC()

	geomJSON, metaJSON, err := encodeBoundary(b)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO boundaries (id, name, category, geometry, metadata, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
		id, b.Name, string(b.Category), geomJSON, metaJSON, createdAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert boundary %s/%s", b.Name, b.Category)
	}
	return id, nil
}

func (s *PostgresStore) GetBoundary(ctx context.Context, name string, category model.BoundaryCategory) (*model.Boundary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, geometry, metadata, is_active, created_at
		 FROM boundaries
		 WHERE name = $1 AND category = $2 AND is_active = TRUE
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		name, string(category),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get boundary %s/%s", name, category)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, eris.Wrap(rows.Err(), "postgres: get boundary")
	}
	b, err := scanBoundary(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: scan boundary %s/%s", name, category)
	}
	return b, nil
}

func (s *PostgresStore) ListBoundaries(ctx context.Context, category model.BoundaryCategory) ([]model.Boundary, error) {
	query := `SELECT id, name, category, geometry, metadata, is_active, created_at
		 FROM boundaries WHERE is_active = TRUE`
	var args []any
	if category != "" {
		query += ` AND category = $1`
		args = append(args, string(category))
	}
	query += ` ORDER BY category, name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list boundaries")
	}
	defer rows.Close()

	var out []model.Boundary
	for rows.Next() {
		b, err := scanBoundary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan boundary")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate boundaries")
}

func (s *PostgresStore) DeactivateBoundary(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE boundaries SET is_active = FALSE WHERE id = $1`, id,
	)
	return eris.Wrapf(err, "postgres: deactivate boundary %s", id)
}

func (s *PostgresStore) BoundaryExists(ctx context.Context, name string, category model.BoundaryCategory) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM boundaries WHERE name = $1 AND category = $2 AND is_active = TRUE`,
		name, string(category),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: boundary exists %s/%s", name, category)
	}
	return n > 0, nil
}

// incidents

var incidentUpsert = db.Upsert{
	Table: "incidents",
	Columns: []string{
		"incident_number", "address", "latitude", "longitude",
		"crime_type", "occurrence_date", "entry_date",
	},
	ConflictKey: "incident_number",
}

func (s *PostgresStore) UpsertIncidents(ctx context.Context, incidents []model.Incident) (int64, error) {
	rows := make([][]any, 0, len(incidents))
	for _, inc := range incidents {
		rows = append(rows, []any{
			inc.IncidentNumber,
			nullString(inc.Address),
			nullFloat(inc.Latitude),
			nullFloat(inc.Longitude),
			nullString(inc.CrimeType),
			nullTime(inc.OccurrenceDate),
			nullTime(inc.EntryDate),
		})
	}
	n, err := incidentUpsert.Run(ctx, s.pool, rows)
	return n, eris.Wrap(err, "postgres: upsert incidents")
}

func (s *PostgresStore) CountIncidents(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count incidents")
}

func (s *PostgresStore) ListIncidentCoordinates(ctx context.Context, limit, offset int) ([]IncidentPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, latitude, longitude FROM incidents ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list incident coordinates")
	}
	defer rows.Close()

	var points []IncidentPoint
	for rows.Next() {
		var p IncidentPoint
		if err := rows.Scan(&p.ID, &p.Latitude, &p.Longitude); err != nil {
			return nil, eris.Wrap(err, "postgres: scan incident point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate incident points")
}

func (s *PostgresStore) UpdateCategories(ctx context.Context, updates []CategoryUpdate, at time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin category tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, u := range updates {
		if _, err := tx.Exec(ctx,
			`UPDATE incidents SET geo_category = $1, categorized_at = $2 WHERE id = $3`,
			string(u.Category), at, u.ID,
		); err != nil {
			return eris.Wrapf(err, "postgres: update category for incident %d", u.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit category tx")
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.DatasetStats, error) {
	stats := &model.DatasetStats{
		Categories: make(map[model.GeoCategory]model.CategoryCount),
	}

	var minLat, maxLat, minLng, maxLng sql.NullFloat64
	var earliest, latest sql.NullTime
	err := s.pool.QueryRow(ctx, `
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
		&earliest, &latest,
		&stats.DistinctCrimeTypes,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: incident stats")
	}
	applyStatsBounds(stats, minLat, maxLat, minLng, maxLng, earliest, latest)

	rows, err := s.pool.Query(ctx,
		`SELECT geo_category, COUNT(*) FROM incidents GROUP BY geo_category`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: category distribution")
	}
	defer rows.Close()
	for rows.Next() {
		var cat sql.NullString
		var count int64
		if err := rows.Scan(&cat, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category count")
		}
		applyCategoryCount(stats, cat.String, cat.Valid, count)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate category counts")
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT incident_number FROM incidents GROUP BY incident_number HAVING COUNT(*) > 1
		) dupes`,
	).Scan(&stats.DuplicateIncidents)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: duplicate incident numbers")
	}

	finalizeStats(stats)
	return stats, nil
}

func (s *PostgresStore) SampleByCategory(ctx context.Context, category model.GeoCategory, n int) ([]model.Incident, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, incident_number, address, latitude, longitude, crime_type,
		        occurrence_date, entry_date, geo_category, categorized_at
		 FROM incidents WHERE geo_category = $1
		 ORDER BY random() LIMIT $2`,
		string(category), n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: sample %s incidents", category)
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan sampled incident")
		}
		out = append(out, *inc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate samples")
}
