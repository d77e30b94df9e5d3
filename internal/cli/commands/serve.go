package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/attendlog/internal/pipeline"
	"github.com/ccollicutt/attendlog/internal/server"
	"github.com/ccollicutt/attendlog/internal/store"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds command-line options for the serve command.
type ServeOptions struct {
	Addr     string
	Config   string
	EnvFiles []string
	Verbose  bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the attendance processor over HTTP",
		Long: `Start an HTTP server exposing the attendance processor.

Endpoints:
  GET  /api/health   liveness
  POST /api/process  multipart upload (log, roster, params, exemptions) -> xlsx
  POST /api/keys     multipart upload (log) -> identity keys as JSON
  GET  /api/ready    archive connectivity (when archive.dsn is set)
  GET  /api/runs     recently archived runs (when archive.dsn is set)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "Config file (yaml)")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "Env files to load before the config (default .env)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log debug detail")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, opts.Config, opts.EnvFiles)
	if err != nil {
		return err
	}

	logger := newInfoLogger(cmd.ErrOrStderr())
	if opts.Verbose {
		logger = newLogger(cmd.ErrOrStderr(), true)
	}

	runner, err := pipeline.New(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	srvOpts := []server.Option{server.WithLogger(logger)}
	if cfg.Archive.DSN != "" {
		st, err := store.NewPostgresStore(ctx, cfg.Archive.DSN)
		if err != nil {
			return fmt.Errorf("connecting archive: %w", err)
		}
		defer st.Close()

		if err := st.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("applying archive schema: %w", err)
		}
		srvOpts = append(srvOpts, server.WithArchive(st))
	}

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           server.New(runner, srvOpts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
