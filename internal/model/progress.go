package model

import "time"

// Progress is emitted by the batch driver after each committed chunk.
type Progress struct {
	Chunk     int                   `json:"chunk"`
	Processed int64                 `json:"processed"`
	Total     int64                 `json:"total"`
	Counts    map[GeoCategory]int64 `json:"counts"`
	Elapsed   time.Duration         `json:"elapsed"`
}

// Percent returns processed records as a percentage of the total, or 0 when
// the total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}
