// Package pipeline wires file reading, the attendance engine and report
// building into the single run used by the CLI and the HTTP server.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ccollicutt/attendlog/pkg/attendance"
	"github.com/ccollicutt/attendlog/pkg/config"
	"github.com/ccollicutt/attendlog/pkg/detector"
	"github.com/ccollicutt/attendlog/pkg/output"
	"github.com/ccollicutt/attendlog/pkg/roster"
	"github.com/ccollicutt/attendlog/pkg/table"
)

// ErrInvalidParams reports per-run params that fail config validation.
var ErrInvalidParams = errors.New("invalid params")

// Request is one set of uploads to process.
type Request struct {
	LogName string
	LogData []byte

	// RosterName picks the roster parser by extension; RosterData may be empty.
	RosterName string
	RosterData []byte

	Params     config.Params
	Exemptions config.Exemptions

	// ConfigFile is recorded in the report metadata only.
	ConfigFile string
}

// Runner processes requests against a base configuration. It is safe for
// concurrent use; every run works on its own config copy and engine.
type Runner struct {
	base     *config.Config
	logger   *slog.Logger
	detector *detector.Detector
	now      func() time.Time
}

// Option configures the Runner.
type Option func(*Runner)

// WithLogger sets the logger passed to each engine.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runner. A nil base uses the default configuration.
func New(base *config.Config, opts ...Option) (*Runner, error) {
	if base == nil {
		base = config.DefaultConfig()
	}
	if err := config.Validate(base); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Runner{
		base:     base,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		detector: detector.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the base configuration.
func (r *Runner) Config() *config.Config {
	return r.base
}

// Process runs the full pipeline and builds the report.
func (r *Runner) Process(ctx context.Context, req Request) (*output.Report, *attendance.Result, error) {
	start := r.now()

	engine, err := r.engine(req)
	if err != nil {
		return nil, nil, err
	}

	log, err := table.ReadLog(bytes.NewReader(req.LogData))
	if err != nil {
		return nil, nil, err
	}

	var rs *roster.Roster
	if len(bytes.TrimSpace(req.RosterData)) > 0 {
		t, err := table.ReadFile(req.RosterName, req.RosterData)
		if err != nil {
			return nil, nil, fmt.Errorf("reading roster: %w", err)
		}
		rs, err = roster.FromTable(t, r.detector)
		if err != nil {
			return nil, nil, err
		}
	}

	result, err := engine.Run(ctx, attendance.Input{Log: log, Roster: rs})
	if err != nil {
		return nil, nil, err
	}

	report := output.NewReport(result, output.Metadata{
		LogFile:     req.LogName,
		RosterFile:  req.RosterName,
		ConfigFile:  req.ConfigFile,
		ProcessedAt: start,
		Duration:    r.now().Sub(start),
	})
	return report, result, nil
}

// Keys lists the identity keys of a log without making decisions.
func (r *Runner) Keys(ctx context.Context, req Request) ([]attendance.KeyItem, error) {
	engine, err := r.engine(req)
	if err != nil {
		return nil, err
	}

	log, err := table.ReadLog(bytes.NewReader(req.LogData))
	if err != nil {
		return nil, err
	}
	return engine.ExtractKeys(ctx, log)
}

func (r *Runner) engine(req Request) (*attendance.Engine, error) {
	cfg, err := r.base.Apply(req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if len(req.Exemptions) > 0 {
		cfg = cfg.WithExemptions(req.Exemptions)
	}
	return attendance.New(cfg,
		attendance.WithLogger(r.logger),
		attendance.WithDetector(r.detector),
	)
}
