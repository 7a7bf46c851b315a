package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/batch"
	"github.com/meridian-civic/districtwatch/internal/classify"
	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/validate"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Classify every incident against the district and buffer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("categorize"); err != nil {
			return err
		}

		// An interrupt stops the run at the next chunk boundary.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		cat := classify.New(s, cfg.Geo.DistrictName, cfg.Geo.BufferName)
		driver := batch.New(s, cat,
			batch.WithChunkSize(cfg.Batch.ChunkSize),
			batch.WithWorkers(cfg.Batch.Workers),
			batch.WithProgress(func(p model.Progress) {
				cmd.Printf("chunk %d: %d/%d (%.1f%%)\n", p.Chunk, p.Processed, p.Total, p.Percent())
			}),
		)

		result, err := driver.Run(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("Categorized %d incidents in %s\n", result.Processed, result.Duration.Round(10*time.Millisecond))
		for _, c := range model.AllCategories() {
			cmd.Printf("  %-10s %d\n", c, result.Counts[c])
		}

		// Post-run distribution checks are advisory: anomalies are reported,
		// never rolled back.
		report, err := validate.New(s, thresholdsFromConfig()).Report(ctx)
		if err != nil {
			return err
		}
		for _, f := range report.Flags {
			cmd.Printf("[%s] %s\n", f.Severity, f.Message)
		}
		if high := report.HighFlags(); len(high) > 0 {
			zap.L().Warn("distribution checks raised HIGH flags", zap.Int("count", len(high)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categorizeCmd)
}
