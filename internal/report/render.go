package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/srg/progressor/internal/samplelog"
	"github.com/srg/progressor/internal/session"
)

// Options tune rendering
type Options struct {
	Color   bool // ANSI colours for table output
	Samples bool // table output lists every sample, not only the summary
}

type palette struct {
	title *color.Color
	label *color.Color
	peak  *color.Color
	warn  *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		title: color.New(color.Bold),
		label: color.New(color.FgCyan),
		peak:  color.New(color.FgGreen, color.Bold),
		warn:  color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.title, p.label, p.peak, p.warn} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Render writes rep to w in the given format
func Render(w io.Writer, rep *Report, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, rep)
	case FormatCSV:
		return renderCSV(w, rep)
	case FormatTable, "":
		return renderTable(w, rep, opts)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

type jsonSample struct {
	Weight      float64 `json:"weight"`
	TimestampUs uint32  `json:"time_us"`
	Seconds     float64 `json:"time_s"`
}

type jsonReport struct {
	SessionID string       `json:"session_id,omitempty"`
	Path      string       `json:"path,omitempty"`
	Summary   Summary      `json:"summary"`
	Samples   []jsonSample `json:"samples"`
}

func renderJSON(w io.Writer, rep *Report) error {
	out := jsonReport{
		SessionID: rep.SessionID,
		Path:      rep.Path,
		Summary:   rep.Summary,
		Samples:   make([]jsonSample, 0, len(rep.Records)),
	}
	for _, r := range rep.Records {
		out.Samples = append(out.Samples, jsonSample{Weight: r.Weight, TimestampUs: r.TimestampUs, Seconds: r.Seconds()})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// renderCSV re-emits the log in its persisted layout
func renderCSV(w io.Writer, rep *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(samplelog.Header); err != nil {
		return err
	}
	for _, r := range rep.Records {
		row := []string{samplelog.FormatWeight(r.Weight), strconv.FormatUint(uint64(r.TimestampUs), 10)}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func renderTable(w io.Writer, rep *Report, opts Options) error {
	p := newPalette(opts.Color)

	if opts.Samples && len(rep.Records) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME (s)\tWEIGHT (kg)")
		fmt.Fprintln(tw, strings.Repeat("-", 24))
		for _, r := range rep.Records {
			fmt.Fprintf(tw, "%.6f\t%s\n", r.Seconds(), samplelog.FormatWeight(r.Weight))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	return writeSummary(w, rep, p)
}

func writeSummary(w io.Writer, rep *Report, p palette) error {
	s := rep.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	if rep.SessionID != "" {
		fmt.Fprintf(tw, "%s\t%s\n", p.label.Sprint("Session:"), rep.SessionID)
	}
	if rep.Path != "" {
		fmt.Fprintf(tw, "%s\t%s\n", p.label.Sprint("Log:"), rep.Path)
	}
	fmt.Fprintf(tw, "%s\t%d\n", p.label.Sprint("Samples:"), s.Samples)
	if s.Samples == 0 {
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := p.warn.Fprintln(w, "No samples recorded")
		return err
	}
	fmt.Fprintf(tw, "%s\t%s at %.3fs\n", p.label.Sprint("Peak:"), p.peak.Sprintf("%s kg", samplelog.FormatWeight(s.PeakWeight)), s.PeakTime)
	fmt.Fprintf(tw, "%s\t%.2f kg\n", p.label.Sprint("Mean:"), s.MeanWeight)
	fmt.Fprintf(tw, "%s\t%.3fs\n", p.label.Sprint("Duration:"), s.Duration)
	return tw.Flush()
}

// WriteGauge prints what the query phase learned about the gauge
func WriteGauge(w io.Writer, info session.GaugeInfo, opts Options) error {
	p := newPalette(opts.Color)

	fmt.Fprintln(w, p.title.Sprint("--- Device information ---"))
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	version := info.Version
	if version == "" {
		version = "unknown"
	}
	fmt.Fprintf(tw, "%s\t%s\n", p.label.Sprint("Firmware:"), version)
	if info.HasBattery {
		fmt.Fprintf(tw, "%s\t%d mV\n", p.label.Sprint("Battery:"), info.BatteryMillivolts)
	} else {
		fmt.Fprintf(tw, "%s\t%s\n", p.label.Sprint("Battery:"), "unknown")
	}
	switch {
	case !info.HasErrorInfo:
		fmt.Fprintf(tw, "%s\t%s\n", p.label.Sprint("Crash log:"), "unknown")
	case info.ErrorInformation == "":
		fmt.Fprintf(tw, "%s\t%s\n", p.label.Sprint("Crash log:"), "empty")
	default:
		fmt.Fprintf(tw, "%s\t%s\n", p.label.Sprint("Crash log:"), p.warn.Sprint(info.ErrorInformation))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, p.title.Sprint("--------------------------"))
	return err
}

// WriteWarnings prints session warnings, nothing when there are none
func WriteWarnings(w io.Writer, res *session.Result, opts Options) error {
	p := newPalette(opts.Color)
	if res.LowPowerWarnings > 0 {
		if _, err := p.warn.Fprintf(w, "Received %d low battery warning(s)\n", res.LowPowerWarnings); err != nil {
			return err
		}
	}
	if res.Diagnostics > 0 {
		if _, err := p.warn.Fprintf(w, "%d frame(s) could not be processed; run with --log-level debug for details\n", res.Diagnostics); err != nil {
			return err
		}
	}
	if res.DroppedFrames > 0 {
		if _, err := p.warn.Fprintf(w, "%d frame(s) arrived after the session ended and were dropped\n", res.DroppedFrames); err != nil {
			return err
		}
	}
	return nil
}

// WriteDiagnostics prints one warning line per frame failure, nothing when there are none
func WriteDiagnostics(w io.Writer, errs []error, opts Options) error {
	p := newPalette(opts.Color)
	for _, err := range errs {
		if _, e := p.warn.Fprintf(w, "Frame not processed: %v\n", err); e != nil {
			return e
		}
	}
	return nil
}

// sessionIDFromPath recovers the session id from a measurements_<id>.csv name
func sessionIDFromPath(path string) string {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, samplelog.FilePrefix) || !strings.HasSuffix(base, samplelog.FileExt) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(base, samplelog.FilePrefix), samplelog.FileExt)
}
