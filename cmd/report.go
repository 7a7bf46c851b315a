package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/validate"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the dataset statistics and validation flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		report, err := validate.New(s, thresholdsFromConfig()).Report(ctx)
		if err != nil {
			return err
		}

		switch reportFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "yaml":
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close() //nolint:errcheck
			return enc.Encode(report)
		case "text":
			printTextReport(cmd, report)
			return nil
		default:
			return eris.Errorf("unknown format %q (want text, json, or yaml)", reportFormat)
		}
	},
}

// printTextReport renders the operator-facing summary with grouped digits.
func printTextReport(cmd *cobra.Command, report *model.ValidationReport) {
	p := message.NewPrinter(language.English)
	out := cmd.OutOrStdout()

	p.Fprintf(out, "Total incidents:      %d\n", report.Stats.TotalIncidents)
	p.Fprintf(out, "With coordinates:     %d (%.1f%%)\n",
		report.Stats.WithCoordinates, report.Stats.CoordinatePercent)
	p.Fprintf(out, "Distinct crime types: %d\n", report.Stats.DistinctCrimeTypes)
	p.Fprintf(out, "Duplicate numbers:    %d\n", report.Stats.DuplicateIncidents)

	p.Fprintf(out, "\nCategories:\n")
	for _, c := range model.AllCategories() {
		cc := report.Stats.Categories[c]
		p.Fprintf(out, "  %-10s %d (%.1f%%)\n", c, cc.Count, cc.Percent)
	}
	if report.Stats.Uncategorized > 0 {
		p.Fprintf(out, "  %-10s %d\n", "pending", report.Stats.Uncategorized)
	}

	if report.Stats.MinLatitude != nil {
		p.Fprintf(out, "\nBounds: lat [%.4f, %.4f]  lng [%.4f, %.4f]\n",
			*report.Stats.MinLatitude, *report.Stats.MaxLatitude,
			*report.Stats.MinLongitude, *report.Stats.MaxLongitude)
	}

	p.Fprintf(out, "\nFlags:\n")
	for _, f := range report.Flags {
		p.Fprintf(out, "  [%s] %s\n", f.Severity, f.Message)
	}
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text, json, or yaml")
	rootCmd.AddCommand(reportCmd)
}
