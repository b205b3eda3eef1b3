// Package history journals scan runs and their commands to SQLite so past
// engagements can be reviewed after the terminal session is gone.
package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// Journal records runs and the commands they execute.
type Journal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal database at path and
// ensures the schema exists.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is empty")
	}
	if err := validateJournalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  domain      TEXT NOT NULL,
  mode        TEXT NOT NULL,
  output_dir  TEXT NOT NULL,
  started_at  TEXT NOT NULL,
  finished_at TEXT
);`,
		`CREATE TABLE IF NOT EXISTS command_log (
  id            TEXT PRIMARY KEY,
  run_id        TEXT NOT NULL REFERENCES runs(id),
  phase         TEXT NOT NULL,
  command       TEXT NOT NULL,
  workdir       TEXT,
  started_at    TEXT NOT NULL,
  finished_at   TEXT NOT NULL,
  exit_code     INTEGER NOT NULL,
  stdout_digest TEXT,
  duration_ms   INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS command_log_run_id_idx ON command_log(run_id, started_at);`,
		`CREATE INDEX IF NOT EXISTS runs_domain_idx ON runs(domain, started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap history schema: %w", err)
		}
	}
	return nil
}

// StartRun records a new run and returns its id.
func (j *Journal) StartRun(ctx context.Context, domain, mode, outputDir string) (string, error) {
	id := uuid.New().String()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, domain, mode, output_dir, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, domain, mode, outputDir, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run's completion time.
func (j *Journal) FinishRun(ctx context.Context, runID string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), runID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// CommandRecord captures one executed command.
type CommandRecord struct {
	RunID    string
	Phase    string
	Command  string
	Workdir  string
	Started  time.Time
	Finished time.Time
	ExitCode int
	Stdout   string
}

// RecordCommand appends a command to the journal. Stdout is stored as a
// BLAKE3 digest, not the raw text; the markdown artifacts hold the content.
func (j *Journal) RecordCommand(ctx context.Context, rec CommandRecord) error {
	digest := ""
	if rec.Stdout != "" {
		sum := blake3.Sum256([]byte(rec.Stdout))
		digest = hex.EncodeToString(sum[:])
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO command_log
  (id, run_id, phase, command, workdir, started_at, finished_at, exit_code, stdout_digest, duration_ms)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), rec.RunID, rec.Phase, rec.Command, rec.Workdir,
		rec.Started.UTC().Format(time.RFC3339), rec.Finished.UTC().Format(time.RFC3339),
		rec.ExitCode, digest, rec.Finished.Sub(rec.Started).Milliseconds())
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// RunSummary is one row from the runs table.
type RunSummary struct {
	ID         string
	Domain     string
	Mode       string
	OutputDir  string
	StartedAt  string
	FinishedAt string
	Commands   int
}

// Runs returns the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT r.id, r.domain, r.mode, r.output_dir, r.started_at,
        COALESCE(r.finished_at, ''),
        (SELECT COUNT(*) FROM command_log c WHERE c.run_id = r.id)
   FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Domain, &r.Mode, &r.OutputDir,
			&r.StartedAt, &r.FinishedAt, &r.Commands); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
