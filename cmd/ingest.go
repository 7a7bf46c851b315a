package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-civic/districtwatch/internal/ingest"
)

var ingestURL string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Pull incident records from the open-data API into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestURL != "" {
			cfg.Ingest.BaseURL = ingestURL
		}
		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		// An interrupt stops the run at the next page boundary.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		client := ingest.NewClient(ingest.Options{
			BaseURL:    cfg.Ingest.BaseURL,
			UserAgent:  cfg.Ingest.UserAgent,
			PageSize:   cfg.Ingest.PageSize,
			MaxRetries: cfg.Ingest.MaxRetries,
			RateLimit:  rate.Limit(cfg.Ingest.RatePerSec),
		})

		total, err := ingest.NewRunner(client, s).Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete", zap.Int64("records", total))
		cmd.Printf("Ingested %d records\n", total)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "open-data API URL (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
