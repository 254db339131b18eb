// Package report reads sample logs back and renders them for people and tools.
package report

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/srg/progressor/internal/samplelog"
)

// Summary condenses a run of samples
type Summary struct {
	Samples    int     `json:"samples"`
	PeakWeight float64 `json:"peak_weight"`
	PeakTime   float64 `json:"peak_time_s"`
	MeanWeight float64 `json:"mean_weight"`
	Duration   float64 `json:"duration_s"`
}

// Report is a sample log ready for rendering
type Report struct {
	SessionID string
	Path      string
	Summary   Summary
	Records   []samplelog.Record
}

// Summarize computes peak, mean and span of records. Duration is the distance
// between the first and last device timestamps; the 32-bit microsecond counter
// may wrap once within a session.
func Summarize(records []samplelog.Record) Summary {
	if len(records) == 0 {
		return Summary{}
	}

	s := Summary{Samples: len(records), PeakWeight: math.Inf(-1)}
	var total float64
	for _, r := range records {
		total += r.Weight
		if r.Weight > s.PeakWeight {
			s.PeakWeight = r.Weight
			s.PeakTime = r.Seconds()
		}
	}
	s.MeanWeight = total / float64(len(records))

	first, last := records[0], records[len(records)-1]
	s.Duration = float64(last.TimestampUs-first.TimestampUs) / 1e6
	return s
}

// Collect drains a record sequence, stopping at the first error
func Collect(seq iter.Seq2[samplelog.Record, error]) ([]samplelog.Record, error) {
	var records []samplelog.Record
	for rec, err := range seq {
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Load reads the log at path into a Report
func Load(path string) (*Report, error) {
	records, err := Collect(samplelog.ReadFile(path))
	if err != nil {
		return nil, err
	}
	return New(records, sessionIDFromPath(path), path), nil
}

// New builds a Report over records
func New(records []samplelog.Record, sessionID, path string) *Report {
	return &Report{
		SessionID: sessionID,
		Path:      path,
		Summary:   Summarize(records),
		Records:   slices.Clip(records),
	}
}

// Format selects a renderer
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be one of [table csv json]", s)
	}
}
