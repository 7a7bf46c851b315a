package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/store"
)

// Runner walks the full dataset page by page and upserts each page.
type Runner struct {
	client *Client
	store  store.Store
	log    *zap.Logger
}

func NewRunner(client *Client, s store.Store) *Runner {
	return &Runner{
		client: client,
		store:  s,
		log:    zap.L().With(zap.String("component", "ingest")),
	}
}

// Run ingests until a short page signals the end of the dataset. It returns
// the number of records upserted.
func (r *Runner) Run(ctx context.Context) (int64, error) {
	var total int64
	pageSize := r.client.opts.PageSize

	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "ingest: run canceled")
		}

		incidents, rawCount, err := r.client.FetchPage(ctx, offset)
		if err != nil {
			return total, eris.Wrapf(err, "ingest: fetch page at offset %d", offset)
		}

		if len(incidents) > 0 {
			n, err := r.store.UpsertIncidents(ctx, incidents)
			if err != nil {
				return total, eris.Wrapf(err, "ingest: upsert page at offset %d", offset)
			}
			total += n

			r.log.Info("page ingested",
				zap.Int("offset", offset),
				zap.Int("page", len(incidents)),
				zap.Int("raw", rawCount),
				zap.Int64("total", total),
			)
		}

		// End of dataset is a short raw page. Filtered records still count
		// toward the page size upstream, so len(incidents) cannot be used.
		if rawCount < pageSize {
			break
		}
	}
	return total, nil
}
