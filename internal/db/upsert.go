package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upsert describes a bulk upsert of incident pages into a target table.
type Upsert struct {
	Table       string   // target table name
	Columns     []string // columns being inserted, in row order
	ConflictKey string   // column forming the unique constraint
}

// Run performs the bulk upsert via a temp table and INSERT ... ON CONFLICT:
// COPY is far faster than row-at-a-time inserts for ingest pages, and the
// ON CONFLICT update keeps re-ingestion of known incident numbers an
// in-place update rather than a duplicate.
func (u Upsert) Run(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(u.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if u.ConflictKey == "" {
		return 0, eris.New("db: upsert: no conflict key specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := "_tmp_upsert_" + u.Table

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		pgx.Identifier{u.Table}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", u.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", u.Table)
	}

	cols := quoteJoin(u.Columns)
	var sets []string
	for _, c := range u.Columns {
		if c == u.ConflictKey {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	upsertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{u.Table}.Sanitize(),
		cols, cols,
		pgx.Identifier{tempTable}.Sanitize(),
		pgx.Identifier{u.ConflictKey}.Sanitize(),
		strings.Join(sets, ", "),
	)
	tag, err := tx.Exec(ctx, upsertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", u.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func quoteJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
