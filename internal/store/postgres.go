// Package store archives attendance runs in Postgres.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccollicutt/attendlog/pkg/output"
)

// schemaSQL is embedded so the archive can bootstrap its own tables.
//
//go:embed schema.sql
var schemaSQL string

// connectTimeout bounds pool creation and the initial ping.
const connectTimeout = 10 * time.Second

// PostgresStore is the run archive.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// RunSummary is one archived run as listed by RecentRuns.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	ProcessedAt time.Time      `json:"processed_at"`
	LogFile     string         `json:"log_file"`
	RosterFile  string         `json:"roster_file"`
	Summary     output.Summary `json:"summary"`
}

// NewPostgresStore creates a connection pool and fails fast if the database
// is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	if dbURL == "" {
		return nil, errors.New("archive dsn is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to archive: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging archive: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping validates database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// SaveRun archives a report. It returns saved=false when the run ID is
// already archived; the existing rows are left untouched.
func (p *PostgresStore) SaveRun(ctx context.Context, report *output.Report) (bool, error) {
	if report.Metadata.RunID == "" {
		return false, errors.New("run id required")
	}

	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return false, fmt.Errorf("encoding summary: %w", err)
	}
	meta, err := json.Marshal(report.Meta)
	if err != nil {
		return false, fmt.Errorf("encoding meta: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	processedAt := report.Metadata.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err = tx.QueryRow(ctx, `
		INSERT INTO runs(run_id, processed_at, log_file, roster_file, summary, meta)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (run_id) DO NOTHING
		RETURNING 1
	`, report.Metadata.RunID, processedAt.UTC(), report.Metadata.LogFile,
		report.Metadata.RosterFile, summary, meta).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, args := range verdictRows(report) {
		batch.Queue(`
			INSERT INTO verdicts(run_id, student_key, raw_names, attended_minutes,
				threshold_minutes, status, naming_penalty, issues)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("inserting verdicts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing run: %w", err)
	}
	return true, nil
}

// RecentRuns lists the newest archived runs first.
func (p *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.pool.Query(ctx, `
		SELECT run_id, processed_at, log_file, roster_file, summary
		FROM runs
		ORDER BY processed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var run RunSummary
		var summary []byte
		if err := rows.Scan(&run.RunID, &run.ProcessedAt, &run.LogFile, &run.RosterFile, &summary); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal(summary, &run.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary for %s: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// verdictRows returns the positional insert arguments for each attendance row.
func verdictRows(report *output.Report) [][]any {
	rows := make([][]any, 0, len(report.Attendance))
	for _, a := range report.Attendance {
		rows = append(rows, []any{
			report.Metadata.RunID,
			a.Key,
			a.RawNames,
			a.AttendedDecision,
			a.ThresholdDecision,
			a.Status,
			a.NamingPenalty,
			a.Issues,
		})
	}
	return rows
}
