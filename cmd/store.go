package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/meridian-civic/districtwatch/internal/geometry"
	"github.com/meridian-civic/districtwatch/internal/store"
	"github.com/meridian-civic/districtwatch/internal/validate"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		s, err = store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func thresholdsFromConfig() validate.Thresholds {
	return validate.Thresholds{
		MissingCoordHighPct:   cfg.Validator.MissingCoordHighPct,
		MissingCoordMediumPct: cfg.Validator.MissingCoordMediumPct,
		InsideHighPct:         cfg.Validator.InsideHighPct,
		OutsideLowPct:         cfg.Validator.OutsideLowPct,
		Metro: geometry.BBox{
			MinLng: cfg.Validator.MetroMinLng,
			MinLat: cfg.Validator.MetroMinLat,
			MaxLng: cfg.Validator.MetroMaxLng,
			MaxLat: cfg.Validator.MetroMaxLat,
		},
	}
}
