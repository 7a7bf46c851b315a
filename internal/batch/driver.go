// Package batch drives full-dataset categorization. Incidents are paged out
// of the store in fixed-size chunks, classified in parallel, and written
// back one transaction per chunk, so an interrupted run leaves whole chunks
// either fully categorized or untouched. Re-running overwrites prior
// assignments, which makes the driver safe to repeat after a boundary
// change.
package batch

import (
	"context"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-civic/districtwatch/internal/classify"
	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/store"
)

// DefaultChunkSize is the number of incidents fetched and committed per
// transaction.
const DefaultChunkSize = 10000

// Result summarizes one completed categorization run.
type Result struct {
	Total     int64                       `json:"total"`
	Processed int64                       `json:"processed"`
	Chunks    int                         `json:"chunks"`
	Counts    map[model.GeoCategory]int64 `json:"counts"`
	Duration  time.Duration               `json:"duration"`
}

// Option configures a Driver.
type Option func(*Driver)

// WithChunkSize overrides the per-transaction chunk size.
func WithChunkSize(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithWorkers sets how many goroutines classify within a chunk.
func WithWorkers(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithProgress registers a callback invoked after each committed chunk.
func WithProgress(fn func(model.Progress)) Option {
	return func(d *Driver) { d.onProgress = fn }
}

// Driver pages incidents through the categorizer and persists the results.
type Driver struct {
	store      store.Store
	cat        *classify.Categorizer
	chunkSize  int
	workers    int
	onProgress func(model.Progress)
	log        *zap.Logger
}

// New builds a driver with the default chunk size and one worker per CPU.
func New(s store.Store, cat *classify.Categorizer, opts ...Option) *Driver {
	d := &Driver{
		store:     s,
		cat:       cat,
		chunkSize: DefaultChunkSize,
		workers:   runtime.NumCPU(),
		log:       zap.L().With(zap.String("component", "batch")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run categorizes every incident in the store. The categorizer is
// initialized here if the caller has not done so already.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if !d.cat.Initialized() {
		if err := d.cat.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	total, err := d.store.CountIncidents(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "batch: count incidents")
	}

	result := &Result{
		Total:  total,
		Counts: make(map[model.GeoCategory]int64),
	}
	d.log.Info("categorization run starting",
		zap.Int64("total", total),
		zap.Int("chunk_size", d.chunkSize),
		zap.Int("workers", d.workers),
	)

	for offset := 0; ; offset += d.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "batch: run canceled")
		}

		points, err := d.store.ListIncidentCoordinates(ctx, d.chunkSize, offset)
		if err != nil {
			return nil, eris.Wrapf(err, "batch: list chunk at offset %d", offset)
		}
		if len(points) == 0 {
			break
		}

		updates, err := d.classifyChunk(ctx, points)
		if err != nil {
			return nil, err
		}

		if err := d.store.UpdateCategories(ctx, updates, time.Now().UTC()); err != nil {
			return nil, eris.Wrapf(err, "batch: commit chunk %d", result.Chunks+1)
		}

		result.Chunks++
		result.Processed += int64(len(updates))
		for _, u := range updates {
			result.Counts[u.Category]++
		}

		if d.onProgress != nil {
			d.onProgress(model.Progress{
				Chunk:     result.Chunks,
				Processed: result.Processed,
				Total:     total,
				Counts:    cloneCounts(result.Counts),
				Elapsed:   time.Since(start),
			})
		}

		if len(points) < d.chunkSize {
			break
		}
	}

	result.Duration = time.Since(start)
	d.log.Info("categorization run finished",
		zap.Int64("processed", result.Processed),
		zap.Int("chunks", result.Chunks),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// classifyChunk shards one chunk across the worker pool. Workers write into
// disjoint index ranges of a preallocated slice, so the output preserves
// input order with no locking.
func (d *Driver) classifyChunk(ctx context.Context, points []store.IncidentPoint) ([]store.CategoryUpdate, error) {
	updates := make([]store.CategoryUpdate, len(points))

	workers := d.workers
	if workers > len(points) {
		workers = len(points)
	}
	if workers <= 1 {
		for i, p := range points {
			cat, err := d.cat.ClassifyPoint(p)
			if err != nil {
				return nil, eris.Wrapf(err, "batch: classify incident %d", p.ID)
			}
			updates[i] = store.CategoryUpdate{ID: p.ID, Category: cat}
		}
		return updates, nil
	}

	g, _ := errgroup.WithContext(ctx)
	per := (len(points) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * per
		hi := lo + per
		if hi > len(points) {
			hi = len(points)
		}
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				cat, err := d.cat.ClassifyPoint(points[i])
				if err != nil {
					return eris.Wrapf(err, "batch: classify incident %d", points[i].ID)
				}
				updates[i] = store.CategoryUpdate{ID: points[i].ID, Category: cat}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return updates, nil
}

func cloneCounts(in map[model.GeoCategory]int64) map[model.GeoCategory]int64 {
	out := make(map[model.GeoCategory]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
