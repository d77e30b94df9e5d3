package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	s := report.Summary
	_, err := fmt.Fprintf(w, "AttendLog: %d students, %d present, %d absent, %d needs review\n",
		s.Students, s.Present, s.Absent, s.NeedsReview)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "=== AttendLog Attendance Report ===")
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "KEY\tSTATUS\tATTENDED\tTHRESHOLD\tPENALTY\tISSUES\n")
	for _, a := range report.Attendance {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%d\t%s\n",
			a.Key, a.Status, a.AttendedDecision, a.ThresholdDecision, a.NamingPenalty, a.Issues)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	if len(report.Absent) > 0 {
		fmt.Fprintf(w, "Not present: %d\n", len(report.Absent))
		for _, a := range report.Absent {
			fmt.Fprintf(w, "  - %s: %s (short %.2f min)\n", a.Key, a.Reason, a.Shortfall)
		}
		fmt.Fprintln(w)
	}

	if f.opts.Verbose {
		if err := f.formatReconnects(report, w); err != nil {
			return err
		}
		if err := f.formatMeta(report, w); err != nil {
			return err
		}
	}

	s := report.Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d students, %d present, %d absent, %d needs review\n",
		s.Students, s.Present, s.Absent, s.NeedsReview)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Penalties: %d, dual device: %d, reconnecting: %d, alias merges: %d, roster only: %d\n",
			s.Penalized, s.DualDevice, s.Reconnecting, s.AliasMerges, s.RosterOnly)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatReconnects(report *Report, w io.Writer) error {
	if len(report.Reconnects) == 0 {
		return nil
	}
	fmt.Fprintln(w, "Reconnects:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range report.Reconnects {
		fmt.Fprintf(tw, "  %s\t#%d\t%s\t->\t%s\t(%s)\n",
			e.Key, e.Event, e.Disconnect, e.Reconnect, e.GapHMS)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func (f *TextFormatter) formatMeta(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "Run constants:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, m := range report.Meta {
		value := cellString(m.Value)
		if strings.TrimSpace(value) == "" {
			value = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", m.Metric, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}
