package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/attendlog/internal/pipeline"
	"github.com/ccollicutt/attendlog/internal/store"
	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/output"
	"github.com/ccollicutt/attendlog/pkg/webhook"
)

// ProcessOptions holds command-line options for the process command.
type ProcessOptions struct {
	Roster         string
	Config         string
	EnvFiles       []string
	ParamsJSON     string
	ExemptionsJSON string
	Output         string
	Out            string
	Verbose        bool
	Quiet          bool
	NoArchive      bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewProcessCommand creates the process command.
func NewProcessCommand() *cobra.Command {
	opts := &ProcessOptions{}

	cmd := &cobra.Command{
		Use:   "process <log-file>",
		Short: "Compute attendance from a meeting participation log",
		Long: `Compute per-student attendance from a meeting participation export.

Produces:
  - Present / Absent / Needs Review per student
  - Dual-device, reconnect and naming-penalty flags
  - Roster students missing from the log (with --roster)

The xlsx report is written to attendance_report.xlsx unless --out is given.
Text and JSON reports go to stdout unless --out is given.

Exit codes:
  0 - Every student is present
  1 - At least one student is Absent or Needs Review
  2 - Input, configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Roster, "roster", "r", "", "Roster file (csv or xlsx)")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Config file (yaml)")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "Env files to load before the config (default .env)")
	cmd.Flags().StringVar(&opts.ParamsJSON, "params-json", "", "Per-run decision params as a JSON object")
	cmd.Flags().StringVar(&opts.ExemptionsJSON, "exemptions-json", "", "Per-key exemptions as a JSON object")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "xlsx", "Output format (xlsx|json|text)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Output file path (\"-\" for stdout)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show reconnect events, run constants and debug logs")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.NoArchive, "no-archive", false, "Do not archive the run even if archive.dsn is set")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string, opts *ProcessOptions) error {
	logFile := args[0]
	ctx := commandContext(cmd.Context())
	stderr := cmd.ErrOrStderr()

	cfg, err := loadConfig(ctx, opts.Config, opts.EnvFiles)
	if err != nil {
		return err
	}

	// Malformed JSON is an error here; only the HTTP form falls back to {}.
	params, err := config.DecodeParams([]byte(opts.ParamsJSON))
	if err != nil {
		return fmt.Errorf("--params-json: %w", err)
	}
	exemptions, err := config.DecodeExemptions([]byte(opts.ExemptionsJSON))
	if err != nil {
		return fmt.Errorf("--exemptions-json: %w", err)
	}

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	req := pipeline.Request{
		LogName:    filepath.Base(logFile),
		Params:     params,
		Exemptions: exemptions,
		ConfigFile: opts.Config,
	}
	if req.LogData, err = readInput("log", logFile); err != nil {
		return err
	}
	if opts.Roster != "" {
		req.RosterName = filepath.Base(opts.Roster)
		if req.RosterData, err = readInput("roster", opts.Roster); err != nil {
			return err
		}
	}

	logger := newLogger(stderr, opts.Verbose)
	runner, err := pipeline.New(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	report, _, err := runner.Process(ctx, req)
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	if err := writeReport(ctx, cmd.OutOrStdout(), formatter, report, opts.Out); err != nil {
		return err
	}

	// Webhooks and the archive never fail the run.
	sendWebhooks(ctx, stderr, cfg, opts, report)
	if !opts.NoArchive && cfg.Archive.DSN != "" {
		archiveRun(ctx, logger, cfg.Archive.DSN, report)
	}

	if report.HasIssues() {
		ExitCode = ExitNotPresent
	}

	return nil
}

// writeReport renders to stdout or a file. Workbooks default to a file.
func writeReport(ctx context.Context, stdout io.Writer, f output.Formatter, report *output.Report, out string) error {
	if out == "" && f.Name() == "xlsx" {
		out = output.DefaultFileName(f.Name())
	}

	if out == "" || out == "-" {
		if err := f.Format(ctx, report, stdout); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
		return nil
	}

	if err := output.WriteFile(ctx, out, f, report); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "Wrote %s report to %s\n", f.Name(), out)
	return nil
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged to stderr but don't fail the run.
func sendWebhooks(ctx context.Context, stderr io.Writer, cfg *config.Config, opts *ProcessOptions, report *output.Report) {
	hooks := collectWebhooks(cfg, opts)
	if len(hooks) == 0 {
		return
	}

	for _, resp := range webhook.NewClient().Dispatch(ctx, hooks, report) {
		if resp.Success() {
			fmt.Fprintf(stderr, "Webhook %s: sent (%d, %s)\n", resp.Name, resp.StatusCode, resp.Duration)
		} else {
			fmt.Fprintf(stderr, "Webhook %s: failed (%v)\n", resp.Name, resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ProcessOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

func archiveRun(ctx context.Context, logger *slog.Logger, dsn string, report *output.Report) {
	st, err := store.NewPostgresStore(ctx, dsn)
	if err != nil {
		logger.Warn("archive unavailable", "error", err)
		return
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		logger.Warn("archive schema", "error", err)
		return
	}
	saved, err := st.SaveRun(ctx, report)
	if err != nil {
		logger.Warn("archiving run failed", "run_id", report.Metadata.RunID, "error", err)
		return
	}
	logger.Debug("run archived", "run_id", report.Metadata.RunID, "saved", saved)
}
