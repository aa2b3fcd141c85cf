package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Journal = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite journal.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			direction TEXT,
			source TEXT,
			dest TEXT,
			status TEXT,
			error_kind TEXT,
			error TEXT,
			nodes INTEGER,
			attributes INTEGER,
			report_path TEXT,
			started_at TEXT,
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS dropped_properties (
			run_id TEXT,
			node TEXT,
			property TEXT,
			kind TEXT,
			reason TEXT,
			PRIMARY KEY (run_id, node, property)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, direction, source, dest, status, error_kind, error, nodes, attributes, report_path, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			direction=excluded.direction,
			source=excluded.source,
			dest=excluded.dest,
			status=excluded.status,
			error_kind=excluded.error_kind,
			error=excluded.error,
			nodes=excluded.nodes,
			attributes=excluded.attributes,
			report_path=excluded.report_path,
			started_at=excluded.started_at,
			finished_at=excluded.finished_at
	`, run.ID, run.Direction, run.Source, run.Dest, run.Status, run.ErrorKind, run.Error,
		run.Nodes, run.Attributes, run.ReportPath, formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	// Dropped properties are a snapshot of the run; replace them wholesale.
	if _, err := tx.ExecContext(ctx, `DELETE FROM dropped_properties WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear dropped properties: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dropped_properties (run_id, node, property, kind, reason) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, node, property) DO UPDATE SET kind=excluded.kind, reason=excluded.reason
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range run.Dropped {
		if _, err := stmt.ExecContext(ctx, run.ID, d.Node, d.Property, d.Kind, d.Reason); err != nil {
			return fmt.Errorf("failed to save dropped property: %w", err)
		}
	}

	return tx.Commit()
}

const runColumns = "id, direction, source, dest, status, error_kind, error, nodes, attributes, report_path, started_at, finished_at"

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadDropped(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRuns(ctx, query, args...)
}

func (s *SQLiteStore) RunsForSource(ctx context.Context, source string) ([]*Run, error) {
	return s.queryRuns(ctx, "SELECT "+runColumns+" FROM runs WHERE source = ? ORDER BY started_at DESC, rowid DESC", source)
}

func (s *SQLiteStore) queryRuns(ctx context.Context, query string, args ...any) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, run := range runs {
		if err := s.loadDropped(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteStore) loadDropped(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, "SELECT node, property, kind, reason FROM dropped_properties WHERE run_id = ? ORDER BY node, property", run.ID)
	if err != nil {
		return fmt.Errorf("failed to query dropped properties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DroppedProperty
		if err := rows.Scan(&d.Node, &d.Property, &d.Kind, &d.Reason); err != nil {
			return fmt.Errorf("failed to scan dropped property: %w", err)
		}
		run.Dropped = append(run.Dropped, d)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var started, finished string
	if err := row.Scan(&run.ID, &run.Direction, &run.Source, &run.Dest, &run.Status, &run.ErrorKind, &run.Error,
		&run.Nodes, &run.Attributes, &run.ReportPath, &started, &finished); err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return &run, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
