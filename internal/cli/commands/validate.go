package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/attendlog/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate an AttendLog configuration file without processing a log.

Checks:
  - YAML syntax
  - Threshold ratio and minute value ranges
  - Exclusion pattern validity
  - Webhook URLs and triggers
  - Rounding mode (unknown modes fall back to none)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd.Context())
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	mode, modeErr := config.ParseRoundingMode(cfg.RoundingMode)

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Threshold ratio:    %g\n", cfg.ThresholdRatio)
	fmt.Fprintf(w, "  Buffer minutes:     %g\n", cfg.BufferMinutes)
	fmt.Fprintf(w, "  Break minutes:      %g\n", cfg.BreakMinutes)
	if cfg.OverrideTotalMinutes > 0 {
		fmt.Fprintf(w, "  Class minutes:      %g (override)\n", cfg.OverrideTotalMinutes)
	} else {
		fmt.Fprintf(w, "  Class minutes:      auto\n")
	}
	fmt.Fprintf(w, "  Penalty tolerance:  %g\n", cfg.PenaltyToleranceMinutes)
	fmt.Fprintf(w, "  Rounding mode:      %s\n", mode.Label())
	fmt.Fprintf(w, "  Alias merge gap:    %s\n", cfg.AliasMergeGap)
	fmt.Fprintf(w, "  Reconnect slack:    %s\n", cfg.ReconnectTolerance)
	fmt.Fprintf(w, "  Exemptions:         %d\n", len(cfg.Exemptions))
	fmt.Fprintf(w, "  Webhooks:           %d\n", len(cfg.Webhooks))
	if cfg.Archive.DSN != "" {
		fmt.Fprintf(w, "  Archive:            enabled\n")
	}

	if len(cfg.ExcludeNames) > 0 {
		fmt.Fprintf(w, "\nExcluded names:\n")
		for i, p := range cfg.ExcludeNames {
			fmt.Fprintf(w, "  %d. %s\n", i+1, p)
		}
	}

	if modeErr != nil {
		fmt.Fprintf(w, "\nWarning: %v (falling back to none)\n", modeErr)
	}

	return nil
}
