package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ccollicutt/attendlog/pkg/config"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitAllPresent = 0
	ExitNotPresent = 1
	ExitError      = 2
)

// commandContext returns the command's context, or a background context.
func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// loadConfig loads .env files first so their variables can override the
// config file, then the config itself (defaults when path is empty).
func loadConfig(ctx context.Context, path string, envFiles []string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	cfg, err := config.LoadOrDefault(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger returns the diagnostics logger. Diagnostics go to stderr; debug
// detail is shown only with verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newInfoLogger returns a logger at info level, used by long-running commands.
func newInfoLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// readInput reads a named input file with a user-facing error.
func readInput(kind, path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided input path is expected
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s file not found: %s", kind, path)
		}
		return nil, fmt.Errorf("reading %s file: %w", kind, err)
	}
	return data, nil
}
