package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/detector"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Detect the columns and timestamp format of a meeting log",
		Long: `Analyze a meeting log to report which columns will be used and which
timestamp format the join and leave cells use.

Samples join/leave cells and tests them against the known timestamp layouts.
Reports the detected format with a confidence score.

Optionally generates a starter config file with --write-config.

Example:
  attendlog detect meeting.csv
  attendlog detect --sample 500 --all meeting.csv
  attendlog detect -w attendlog.yaml meeting.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of timestamp cells to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all detected formats, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

// Detection is the combined column and timestamp detection for one log.
type Detection struct {
	File       string
	Rows       int
	Columns    detector.Columns
	Timestamps *detector.DetectionResult
}

func detectLog(path string, sampleSize int) (*Detection, error) {
	data, err := readInput("log", path)
	if err != nil {
		return nil, err
	}
	t, err := table.ReadLog(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	d := detector.New(detector.WithSampleSize(sampleSize))
	cols, err := d.DetectColumns(t)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	det := &Detection{File: path, Rows: t.Len(), Columns: cols}
	if cols.HasTimes() {
		values := append(t.Column(cols.Join), t.Column(cols.Leave)...)
		det.Timestamps = d.DetectTimestamps(values)
	}
	return det, nil
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	det, err := detectLog(args[0], opts.SampleSize)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(w, det, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(w, det, opts)
	default:
		return outputDetectText(w, det, opts)
	}
}

func outputDetectText(w io.Writer, det *Detection, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Meeting Log Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", det.File)
	fmt.Fprintf(w, "Rows: %d\n", det.Rows)
	fmt.Fprintln(w)

	c := det.Columns
	fmt.Fprintln(w, "Columns:")
	fmt.Fprintf(w, "  name:           %s\n", orDash(c.Name))
	fmt.Fprintf(w, "  join:           %s\n", orDash(c.Join))
	fmt.Fprintf(w, "  leave:          %s\n", orDash(c.Leave))
	fmt.Fprintf(w, "  duration:       %s\n", orDash(c.Duration))
	fmt.Fprintf(w, "  email:          %s\n", orDash(c.Email))
	fmt.Fprintf(w, "  participant id: %s\n", orDash(c.ParticipantID))
	fmt.Fprintln(w)

	result := det.Timestamps
	if result == nil {
		fmt.Fprintln(w, "No join/leave columns; attendance will be computed from durations.")
		return nil
	}

	fmt.Fprintf(w, "Timestamp cells sampled: %d\n", result.SampledValues)
	fmt.Fprintf(w, "Timestamp cells parsed:  %d\n", result.ParsedValues)
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No timestamp format detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: The export may use an uncommon format.")
		fmt.Fprintln(w, "Rows with unparseable times are ignored; with none parseable the log is rejected.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Format: %s\n", best.Format.Name)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d cells matched)\n",
		best.Confidence*100, best.MatchCount, result.SampledValues)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleValue)
	fmt.Fprintf(w, "Parsed as: %s\n", best.ParsedTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(w)

	if best.Format.Ambiguous {
		fmt.Fprintln(w, "WARNING: This format has date ordering ambiguity (MM/DD vs DD/MM).")
		fmt.Fprintln(w)
	}
	if result.AmbiguityNote != "" {
		fmt.Fprintf(w, "Note: %s\n", result.AmbiguityNote)
		fmt.Fprintln(w)
	}

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Alternative formats detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence)\n", i+2, m.Format.Name, m.Confidence*100)
			fmt.Fprintf(w, "   layout: \"%s\"\n", m.Format.Layout)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONMatch represents a format match in JSON output.
type JSONMatch struct {
	Name        string  `json:"name"`
	Layout      string  `json:"layout"`
	Confidence  float64 `json:"confidence"`
	MatchCount  int     `json:"match_count"`
	SampleValue string  `json:"sample_value"`
	Ambiguous   bool    `json:"ambiguous,omitempty"`
}

// JSONColumns represents the selected columns in JSON output.
type JSONColumns struct {
	Name          string `json:"name"`
	Join          string `json:"join,omitempty"`
	Leave         string `json:"leave,omitempty"`
	Duration      string `json:"duration,omitempty"`
	Email         string `json:"email,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File          string      `json:"file"`
	Rows          int         `json:"rows"`
	Columns       JSONColumns `json:"columns"`
	Timed         bool        `json:"timed"`
	Matches       []JSONMatch `json:"matches"`
	SampledValues int         `json:"sampled_values"`
	ParsedValues  int         `json:"parsed_values"`
	AmbiguityNote string      `json:"ambiguity_note,omitempty"`
}

func outputDetectJSON(w io.Writer, det *Detection, opts *DetectOptions) error {
	c := det.Columns
	out := JSONOutput{
		File: det.File,
		Rows: det.Rows,
		Columns: JSONColumns{
			Name:          c.Name,
			Join:          c.Join,
			Leave:         c.Leave,
			Duration:      c.Duration,
			Email:         c.Email,
			ParticipantID: c.ParticipantID,
		},
		Timed:   det.Timestamps.HasMatch(),
		Matches: make([]JSONMatch, 0),
	}

	if result := det.Timestamps; result != nil {
		out.SampledValues = result.SampledValues
		out.ParsedValues = result.ParsedValues
		out.AmbiguityNote = result.AmbiguityNote

		matches := result.Matches
		if !opts.ShowAll && len(matches) > 1 {
			matches = matches[:1] // Only show best match
		}
		for _, m := range matches {
			out.Matches = append(out.Matches, JSONMatch{
				Name:        m.Format.Name,
				Layout:      m.Format.Layout,
				Confidence:  m.Confidence,
				MatchCount:  m.MatchCount,
				SampleValue: m.SampleValue,
				Ambiguous:   m.Format.Ambiguous,
			})
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file with the defaults.
func writeStarterConfig(w io.Writer, det *Detection, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(generateStarterConfig(det)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(det *Detection) string {
	source := "durations (no join/leave columns)"
	if best := det.Timestamps.BestMatch(); best != nil {
		source = fmt.Sprintf("%s (%.0f%% confidence)", best.Format.Name, best.Confidence*100)
	}

	cfg := config.DefaultConfig()
	var excludes bytes.Buffer
	for _, p := range cfg.ExcludeNames {
		// Single-quoted YAML escapes a quote by doubling it.
		fmt.Fprintf(&excludes, "  - '%s'\n", strings.ReplaceAll(p, "'", "''"))
	}

	return fmt.Sprintf(`# AttendLog Configuration
# Generated by: attendlog detect
# Log: %s
# Attendance source: %s

# Share of the adjusted class length a student must attend.
threshold_ratio: %g

# Minutes subtracted from the threshold before deciding.
buffer_minutes: 0

# Minutes of scheduled break removed from the class length.
break_minutes: 0

# Class length in minutes; 0 derives it from the log.
override_total_minutes: 0

# Minutes a student may attend under a name without an ID before the
# naming penalty applies.
penalty_tolerance_minutes: 0

# none | ceil_attendance | ceil_both
rounding_mode: none

# Display names that are never students (case-insensitive regexes).
exclude_names:
%s
# Per-student exemptions, keyed as listed by 'attendlog keys'.
# exemptions:
#   "ID:10001": {naming: true, overlap: false, reconnect: false}

alias_merge_gap: %s
reconnect_tolerance: %s

# webhooks:
#   - name: instructor-alerts
#     url: https://hooks.example.com/attendance
#     token: ${ATTENDLOG_WEBHOOK_TOKEN}
#     trigger: on_issues

# archive:
#   dsn: ${ATTENDLOG_DB_URL}
`, det.File, source, cfg.ThresholdRatio, excludes.String(), cfg.AliasMergeGap, cfg.ReconnectTolerance)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
