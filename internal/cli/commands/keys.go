package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/attendlog/internal/pipeline"
)

// KeysOptions holds command-line options for the keys command.
type KeysOptions struct {
	Config   string
	EnvFiles []string
}

// NewKeysCommand creates the keys command.
func NewKeysCommand() *cobra.Command {
	opts := &KeysOptions{}

	cmd := &cobra.Command{
		Use:   "keys <log-file>",
		Short: "List the identity keys found in a log",
		Long: `Resolve the names in a meeting log and list one identity key per student,
in first-seen order, as JSON. Use the keys to write exemptions.

Example:
  attendlog keys meeting.csv > keys.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Config file (yaml)")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "Env files to load before the config (default .env)")

	return cmd
}

func runKeys(cmd *cobra.Command, args []string, opts *KeysOptions) error {
	ctx := commandContext(cmd.Context())

	cfg, err := loadConfig(ctx, opts.Config, opts.EnvFiles)
	if err != nil {
		return err
	}

	data, err := readInput("log", args[0])
	if err != nil {
		return err
	}

	runner, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	keys, err := runner.Keys(ctx, pipeline.Request{LogName: filepath.Base(args[0]), LogData: data})
	if err != nil {
		return fmt.Errorf("extracting keys: %w", err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(keys)
}
