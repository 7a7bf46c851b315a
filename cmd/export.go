package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/export"
)

var (
	exportOut    string
	exportFormat string
	exportPerCat int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stratified sample of categorized incidents for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		if exportOut == "" {
			return eris.New("--out is required")
		}

		ctx := cmd.Context()
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		incidents, err := export.New(s).StratifiedSample(ctx, exportPerCat)
		if err != nil {
			return err
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close() //nolint:errcheck

		switch exportFormat {
		case "csv":
			err = export.WriteCSV(f, incidents)
		case "geojson":
			err = export.WriteGeoJSON(f, incidents)
		case "xlsx":
			err = export.WriteXLSX(f, incidents)
		default:
			return eris.Errorf("unknown format %q (want csv, geojson, or xlsx)", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("path", exportOut),
			zap.String("format", exportFormat),
			zap.Int("incidents", len(incidents)),
		)
		cmd.Printf("Wrote %d incidents to %s\n", len(incidents), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, geojson, or xlsx")
	exportCmd.Flags().IntVar(&exportPerCat, "per-category", 50, "sample size per category")
	rootCmd.AddCommand(exportCmd)
}
