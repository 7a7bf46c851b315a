// Package export produces review artifacts from categorized incidents:
// stratified samples for manual spot checks, a fixed-column CSV, a GeoJSON
// feature collection for map overlays, and an XLSX workbook with one sheet
// per category.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/meridian-civic/districtwatch/internal/model"
	"github.com/meridian-civic/districtwatch/internal/store"
)

// csvHeader is the fixed column set reviewers expect. The last two columns
// are left blank for the reviewer to fill in.
var csvHeader = []string{
	"id", "incident_number", "address", "geo_category", "crime_type",
	"date", "lat", "lon", "map_link", "validation_status", "notes",
}

// Exporter samples categorized incidents out of the store.
type Exporter struct {
	store store.Store
	log   *zap.Logger
}

func New(s store.Store) *Exporter {
	return &Exporter{
		store: s,
		log:   zap.L().With(zap.String("component", "export")),
	}
}

// StratifiedSample draws up to perCategory random incidents from each of the
// three categories, in reporting order.
func (e *Exporter) StratifiedSample(ctx context.Context, perCategory int) ([]model.Incident, error) {
	var out []model.Incident
	for _, cat := range model.AllCategories() {
		sampled, err := e.store.SampleByCategory(ctx, cat, perCategory)
		if err != nil {
			return nil, eris.Wrapf(err, "export: sample %s", cat)
		}
		out = append(out, sampled...)
	}
	e.log.Info("stratified sample drawn",
		zap.Int("per_category", perCategory),
		zap.Int("total", len(out)),
	)
	return out, nil
}

// WriteCSV writes incidents in the fixed review-sheet layout.
func WriteCSV(w io.Writer, incidents []model.Incident) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, inc := range incidents {
		if err := cw.Write(csvRow(inc)); err != nil {
			return eris.Wrapf(err, "export: write csv row for %s", inc.IncidentNumber)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func csvRow(inc model.Incident) []string {
	return []string{
		fmt.Sprintf("%d", inc.ID),
		inc.IncidentNumber,
		strOrEmpty(inc.Address),
		categoryOrEmpty(inc.GeoCategory),
		strOrEmpty(inc.CrimeType),
		dateOrEmpty(inc.OccurrenceDate),
		coordOrEmpty(inc.Latitude),
		coordOrEmpty(inc.Longitude),
		mapLink(inc),
		"", // validation_status, filled by the reviewer
		"", // notes, filled by the reviewer
	}
}

// WriteGeoJSON writes incidents as a FeatureCollection of points. Incidents
// without coordinates carry no geometry and are skipped.
func WriteGeoJSON(w io.Writer, incidents []model.Incident) error {
	fc := geojson.FeatureCollection{}
	for _, inc := range incidents {
		if !inc.HasCoordinates() {
			continue
		}
		point, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{*inc.Longitude, *inc.Latitude})
		if err != nil {
			return eris.Wrapf(err, "export: point for %s", inc.IncidentNumber)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       fmt.Sprintf("%d", inc.ID),
			Geometry: point,
			// Same attribute set as the tabular exports, minus the
			// reviewer-filled columns.
			Properties: map[string]any{
				"incident_number": inc.IncidentNumber,
				"address":         strOrEmpty(inc.Address),
				"geo_category":    categoryOrEmpty(inc.GeoCategory),
				"crime_type":      strOrEmpty(inc.CrimeType),
				"date":            dateOrEmpty(inc.OccurrenceDate),
				"map_link":        mapLink(inc),
			},
		})
	}
	return eris.Wrap(json.NewEncoder(w).Encode(&fc), "export: encode geojson")
}

// WriteXLSX writes a QA workbook with one sheet per category plus a sheet
// for anything uncategorized.
func WriteXLSX(w io.Writer, incidents []model.Incident) error {
	file := xlsx.NewFile()

	sheets := make(map[string]*xlsx.Sheet)
	sheetNames := []string{"inside", "bordering", "outside", "uncategorized"}
	for _, name := range sheetNames {
		sheet, err := file.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", name)
		}
		header := sheet.AddRow()
		for _, col := range csvHeader {
			header.AddCell().SetString(col)
		}
		sheets[name] = sheet
	}

	for _, inc := range incidents {
		name := "uncategorized"
		if inc.GeoCategory != nil {
			name = string(*inc.GeoCategory)
		}
		sheet, ok := sheets[name]
		if !ok {
			sheet = sheets["uncategorized"]
		}
		row := sheet.AddRow()
		for _, v := range csvRow(inc) {
			row.AddCell().SetString(v)
		}
	}

	return eris.Wrap(file.Write(w), "export: write xlsx")
}

func mapLink(inc model.Incident) string {
	if !inc.HasCoordinates() {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f", *inc.Latitude, *inc.Longitude)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func categoryOrEmpty(c *model.GeoCategory) string {
	if c == nil {
		return ""
	}
	return string(*c)
}

func coordOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *f)
}

func dateOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
