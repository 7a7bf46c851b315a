// Package ingest pulls incident records from an open-data API and upserts
// them into the store. The API serves JSON pages selected by $limit/$offset
// query parameters; ingestion walks pages until a short page signals the
// end of the dataset.
package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// rawRecord is one incident as the open-data API serves it. Numeric fields
// arrive as strings or numbers depending on the portal version, so both are
// accepted.
type rawRecord struct {
	IncidentNumber string     `json:"incident_number"`
	Address        string     `json:"address"`
	Latitude       *jsonFloat `json:"latitude"`
	Longitude      *jsonFloat `json:"longitude"`
	CrimeType      string     `json:"crime_type"`
	OccurrenceDate string     `json:"occurrence_date"`
	EntryDate      string     `json:"entry_date"`
}

// jsonFloat decodes from a JSON number or a numeric string.
type jsonFloat float64

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

var _ json.Unmarshaler = (*jsonFloat)(nil)

// recordDateLayouts covers the timestamp forms the portal emits.
var recordDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseRecordDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range recordDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
