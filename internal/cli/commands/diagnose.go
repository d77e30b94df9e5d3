package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/detector"
	"github.com/ccollicutt/attendlog/pkg/roster"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Config   string
	EnvFiles []string
	Roster   string
	Verbose  bool
}

// Diagnostic statuses.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusError   = "error"
)

// maxDetails caps the rows listed per check.
const maxDetails = 10

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <log-file>",
		Short: "Diagnose problems with a meeting log, roster and config",
		Long: `Diagnose common input problems before processing.

This command checks:
- Log file existence and the participant header row
- Column detection and timestamp parsing
- Rows with empty names, unparseable times or leave before join
- Rows dropped by the exclusion list
- Roster ID and name columns (with --roster)
- Config validity and webhook settings (with --config)

Example:
  attendlog diagnose meeting.csv
  attendlog diagnose -v --roster roster.xlsx --config attendlog.yaml meeting.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(commandContext(cmd.Context()), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Config file (yaml)")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "Env files to load before the config (default .env)")
	cmd.Flags().StringVarP(&opts.Roster, "roster", "r", "", "Roster file (csv or xlsx)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output and test webhook connectivity")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, logPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	cfg, result := checkConfig(ctx, opts)
	results = append(results, result)
	if cfg == nil {
		cfg = config.DefaultConfig()
		_ = config.Validate(cfg)
	}

	d := detector.New()

	t, result := checkLogFile(logPath)
	results = append(results, result)
	if t != nil {
		results = append(results, checkLogContents(ctx, d, t, cfg)...)
	}

	if opts.Roster != "" {
		results = append(results, checkRoster(d, opts.Roster))
	}

	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfig(ctx context.Context, opts *DiagnoseOptions) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{Check: "Config"}

	cfg, err := loadConfig(ctx, opts.Config, opts.EnvFiles)
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		result.Suggests = []string{
			"Use 'attendlog validate <config-file>' for details",
			"Use 'attendlog detect <log-file> --write-config attendlog.yaml' to generate a starter config",
		}
		return nil, result
	}

	source := "defaults"
	if opts.Config != "" {
		source = opts.Config
	}

	if _, err := config.ParseRoundingMode(cfg.RoundingMode); err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Loaded %s with an unknown rounding mode", source)
		result.Details = []string{err.Error()}
		result.Suggests = []string{"Use none, ceil_attendance or ceil_both; unknown modes fall back to none"}
		return cfg, result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Loaded %s (threshold %g, buffer %g, break %g)",
		source, cfg.ThresholdRatio, cfg.BufferMinutes, cfg.BreakMinutes)
	return cfg, result
}

func checkLogFile(path string) (*table.Table, DiagnosticResult) {
	result := DiagnosticResult{Check: "Log File"}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Log file not found: %s", path)
		result.Suggests = []string{"Check the file path is correct"}
		return nil, result
	}
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot access log file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return nil, result
	}
	if info.IsDir() {
		result.Status = StatusError
		result.Message = "Path is a directory, not a file"
		return nil, result
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-provided input path is expected
	if err != nil {
		result.Status = StatusError
		result.Message = fmt.Sprintf("Cannot read log file: %v", err)
		return nil, result
	}

	t, err := table.ReadLog(bytes.NewReader(data))
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		result.Suggests = []string{
			"Export the participants report with the 'Name (Original Name)' header",
			"A plain CSV needs a name column and either join/leave or duration columns",
		}
		return nil, result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes, %d rows, %d columns)", path, info.Size(), t.Len(), len(t.Headers))
	if t.Len() == 0 {
		result.Status = StatusWarning
		result.Message = "Header row found but the log has no participant rows"
	}
	return t, result
}

func checkLogContents(ctx context.Context, d *detector.Detector, t *table.Table, cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	cols, err := d.DetectColumns(t)
	columns := DiagnosticResult{Check: "Columns"}
	if err != nil {
		columns.Status = StatusError
		columns.Message = err.Error()
		columns.Details = []string{"Headers: " + strings.Join(t.Headers, ", ")}
		return append(results, columns)
	}
	columns.Status = StatusOK
	columns.Message = fmt.Sprintf("name=%q join=%q leave=%q duration=%q", cols.Name, cols.Join, cols.Leave, cols.Duration)
	results = append(results, columns)

	binding, err := d.Bind(ctx, t)
	if err != nil {
		return append(results, DiagnosticResult{Check: "Rows", Status: StatusError, Message: err.Error()})
	}

	if cols.HasTimes() {
		results = append(results, checkTimestamps(binding))
	}
	results = append(results, checkRows(binding, cfg))

	return results
}

func checkTimestamps(b *detector.Binding) DiagnosticResult {
	result := DiagnosticResult{Check: "Timestamps"}

	best := b.Timestamps.BestMatch()
	if best == nil {
		result.Status = StatusWarning
		result.Message = "Join/leave columns present but no timestamp format matched"
		result.Suggests = []string{"Attendance falls back to the duration column if there is one"}
		return result
	}

	unparsed := 0
	for i, r := range b.Records {
		if r.Join.IsZero() || r.Leave.IsZero() {
			unparsed++
			if len(result.Details) < maxDetails {
				result.Details = append(result.Details,
					fmt.Sprintf("row %d %q: join=%q leave=%q", i+1, r.RawName, r.JoinRaw, r.LeaveRaw))
			}
		}
	}

	result.Message = fmt.Sprintf("%s (%.1f%% of sampled cells)", best.Format.Name, best.Confidence*100)
	switch {
	case unparsed > 0:
		result.Status = StatusWarning
		result.Message += fmt.Sprintf(", %d row(s) with an unparseable time", unparsed)
	case best.Format.Ambiguous || b.Timestamps.AmbiguityNote != "":
		result.Status = StatusWarning
		result.Details = append(result.Details, "Date ordering is ambiguous (MM/DD vs DD/MM)")
		if b.Timestamps.AmbiguityNote != "" {
			result.Details = append(result.Details, b.Timestamps.AmbiguityNote)
		}
	default:
		result.Status = StatusOK
	}
	return result
}

func checkRows(b *detector.Binding, cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{Check: "Rows"}

	var empty, excluded, reversed int
	add := func(detail string) {
		if len(result.Details) < maxDetails {
			result.Details = append(result.Details, detail)
		}
	}

	for i, r := range b.Records {
		name := strings.TrimSpace(r.RawName)
		switch {
		case name == "":
			empty++
			add(fmt.Sprintf("row %d: empty name", i+1))
		case isExcluded(cfg, name):
			excluded++
			add(fmt.Sprintf("row %d %q: excluded", i+1, name))
		case !r.Join.IsZero() && !r.Leave.IsZero() && r.Leave.Before(r.Join):
			reversed++
			add(fmt.Sprintf("row %d %q: leave before join", i+1, name))
		}
	}

	result.Message = fmt.Sprintf("%d row(s): %d empty name, %d excluded, %d leave before join",
		len(b.Records), empty, excluded, reversed)
	result.Status = StatusOK
	if empty+reversed > 0 {
		result.Status = StatusWarning
	}
	return result
}

func isExcluded(cfg *config.Config, name string) bool {
	for _, re := range cfg.CompiledExcludes() {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func checkRoster(d *detector.Detector, path string) DiagnosticResult {
	result := DiagnosticResult{Check: "Roster"}

	data, err := readInput("roster", path)
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}
	t, err := table.ReadFile(path, data)
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}
	rs, err := roster.FromTable(t, d)
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		result.Suggests = []string{"The roster needs a column of 5-digit student IDs and a name column"}
		return result
	}

	result.Status = StatusOK
	result.Message = fmt.Sprintf("%d student(s); id=%q name=%q", rs.Len(), rs.Columns.ID, rs.Columns.Name)
	if skipped := t.Len() - rs.Len(); skipped > 0 {
		result.Status = StatusWarning
		result.Details = append(result.Details,
			fmt.Sprintf("%d row(s) skipped (missing or duplicate ID, or empty name)", skipped))
	}
	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== AttendLog Input Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case StatusOK:
			icon = "PASS"
			okCount++
		case StatusWarning:
			icon = "WARN"
			warnCount++
		case StatusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != StatusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before processing.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nInputs are usable but have warnings.")
	} else {
		fmt.Fprintln(w, "\nInputs look good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  StatusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check:   fmt.Sprintf("Webhook: %s", name),
			Status:  StatusOK,
			Message: fmt.Sprintf("Trigger: %s", wh.Trigger),
		}

		// Config validation already rejected bad URLs and triggers.
		if strings.HasPrefix(wh.Token, "$") {
			result.Status = StatusWarning
			result.Message = "Token appears to be an unresolved env var"
			result.Details = []string{wh.Token}
		} else if opts.Verbose {
			result.Details = []string{
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout),
			}
			if wh.Token != "" {
				result.Details = append(result.Details, "Token: configured")
			}
		}
		results = append(results, result)

		if opts.Verbose {
			conn := checkWebhookConnectivity(wh)
			conn.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, conn)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = StatusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}
