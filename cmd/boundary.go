package main

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/geoimport"
	"github.com/meridian-civic/districtwatch/internal/geometry"
	"github.com/meridian-civic/districtwatch/internal/model"
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Manage district and buffer boundaries",
}

var (
	boundaryImportName string
	boundaryImportFile string
)

var boundaryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a district polygon from a GeoJSON file or shapefile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("boundary"); err != nil {
			return err
		}
		if boundaryImportFile == "" {
			return eris.New("--file is required")
		}
		name := boundaryImportName
		if name == "" {
			name = cfg.Geo.DistrictName
		}

		var (
			g   geom.T
			err error
		)
		switch strings.ToLower(filepath.Ext(boundaryImportFile)) {
		case ".shp":
			g, err = geoimport.LoadShapefile(boundaryImportFile)
		default:
			g, err = geoimport.LoadGeoJSON(boundaryImportFile)
		}
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		id, err := s.SaveBoundary(ctx, &model.Boundary{
			Name:     name,
			Category: model.BoundaryDistrict,
			Geometry: g,
			Metadata: map[string]any{"source": boundaryImportFile},
		})
		if err != nil {
			return err
		}

		zap.L().Info("boundary imported",
			zap.String("id", id),
			zap.String("name", name),
		)
		cmd.Printf("Imported district boundary %s (%s)\n", name, id)
		return nil
	},
}

var bufferKm float64

var boundaryBufferCmd = &cobra.Command{
	Use:   "buffer",
	Short: "Generate the buffer boundary by dilating the active district",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("boundary"); err != nil {
			return err
		}
		km := bufferKm
		if km == 0 {
			km = cfg.Geo.BufferKm
		}

		ctx := cmd.Context()
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		district, err := s.GetBoundary(ctx, cfg.Geo.DistrictName, model.BoundaryDistrict)
		if err != nil {
			return err
		}
		if district == nil {
			return eris.Errorf("no active district boundary named %q; import one first", cfg.Geo.DistrictName)
		}

		buffered, err := geometry.Buffer(district.Geometry, km)
		if err != nil {
			return err
		}

		// Supersede the previous buffer so lookups stay unambiguous.
		if old, err := s.GetBoundary(ctx, cfg.Geo.BufferName, model.BoundaryBuffer); err != nil {
			return err
		} else if old != nil {
			if err := s.DeactivateBoundary(ctx, old.ID); err != nil {
				return err
			}
		}

		id, err := s.SaveBoundary(ctx, &model.Boundary{
			Name:     cfg.Geo.BufferName,
			Category: model.BoundaryBuffer,
			Geometry: buffered,
			Metadata: map[string]any{
				"source_boundary": district.ID,
				"distance_km":     km,
			},
		})
		if err != nil {
			return err
		}

		zap.L().Info("buffer generated",
			zap.String("id", id),
			zap.Float64("distance_km", km),
		)
		cmd.Printf("Generated %.2f km buffer %s (%s)\n", km, cfg.Geo.BufferName, id)
		return nil
	},
}

var boundaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active boundaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("boundary"); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		boundaries, err := s.ListBoundaries(ctx, "")
		if err != nil {
			return err
		}
		if len(boundaries) == 0 {
			cmd.Println("No active boundaries")
			return nil
		}
		for _, b := range boundaries {
			cmd.Printf("%s  %-8s  %-20s  created %s\n",
				b.ID, b.Category, b.Name, b.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var boundaryDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate a boundary by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("boundary"); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		if err := s.DeactivateBoundary(ctx, args[0]); err != nil {
			return err
		}
		cmd.Printf("Deactivated boundary %s\n", args[0])
		return nil
	},
}

var boundaryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show area statistics for active boundaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("boundary"); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		boundaries, err := s.ListBoundaries(ctx, "")
		if err != nil {
			return err
		}
		for _, b := range boundaries {
			area, err := geometry.AreaSquareMeters(b.Geometry)
			if err != nil {
				return err
			}
			cmd.Printf("%-8s  %-20s  %.1f km2\n", b.Category, b.Name, area/1e6)
		}
		return nil
	},
}

func init() {
	boundaryImportCmd.Flags().StringVar(&boundaryImportName, "name", "", "boundary name (default from config)")
	boundaryImportCmd.Flags().StringVar(&boundaryImportFile, "file", "", "GeoJSON or shapefile path")
	boundaryBufferCmd.Flags().Float64Var(&bufferKm, "km", 0, "buffer distance in kilometers (default from config)")

	boundaryCmd.AddCommand(boundaryImportCmd)
	boundaryCmd.AddCommand(boundaryBufferCmd)
	boundaryCmd.AddCommand(boundaryListCmd)
	boundaryCmd.AddCommand(boundaryDeactivateCmd)
	boundaryCmd.AddCommand(boundaryStatsCmd)
	rootCmd.AddCommand(boundaryCmd)
}
