package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides database operations for the run log
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs database migrations
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT UNIQUE NOT NULL,
			trigger_name TEXT,
			message_id TEXT,
			from_addr TEXT,
			subject TEXT,
			status TEXT NOT NULL DEFAULT 'running',
			error_kind TEXT,
			error_message TEXT,
			received_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_received ON runs(received_at)`,

		`CREATE TABLE IF NOT EXISTS step_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step TEXT NOT NULL,
			detail TEXT,
			error TEXT,
			duration_ms INTEGER,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_step_logs_run ON step_logs(run_id)`,

		`CREATE TABLE IF NOT EXISTS extractions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			summary TEXT,
			account_id TEXT,
			suggested_reply TEXT,
			invoices TEXT,
			model TEXT,
			total_tokens INTEGER,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_run ON extractions(run_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveRun stores a new run record
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, trigger_name, message_id, from_addr, subject,
			status, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID, run.TriggerName, run.MessageID, run.FromAddr,
		run.Subject, run.Status, run.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id

	return nil
}

// CompleteRun marks a run completed or failed with its error classification
func (s *Store) CompleteRun(ctx context.Context, runID string, status RunStatus, errorKind, errorMessage string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_kind = ?, error_message = ?, completed_at = ?
		WHERE run_id = ?
	`, status, errorKind, errorMessage, now, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by its run ID
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	var errorKind, errorMessage sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, trigger_name, message_id, from_addr, subject,
			   status, error_kind, error_message, received_at, completed_at
		FROM runs WHERE run_id = ?
	`, runID).Scan(
		&run.ID, &run.RunID, &run.TriggerName, &run.MessageID, &run.FromAddr,
		&run.Subject, &run.Status, &errorKind, &errorMessage,
		&run.ReceivedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, trigger_name, message_id, from_addr, subject,
			   status, error_kind, error_message, received_at, completed_at
		FROM runs ORDER BY received_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var errorKind, errorMessage sql.NullString
		var completedAt sql.NullTime

		if err := rows.Scan(
			&run.ID, &run.RunID, &run.TriggerName, &run.MessageID, &run.FromAddr,
			&run.Subject, &run.Status, &errorKind, &errorMessage,
			&run.ReceivedAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.ErrorKind = errorKind.String
		run.ErrorMessage = errorMessage.String
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}

		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// SaveStepLog stores a step log entry
func (s *Store) SaveStepLog(ctx context.Context, log *StepLog) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO step_logs (run_id, step, detail, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.RunID, log.Step, log.Detail, log.Error, log.Duration, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save step log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id

	return nil
}

// GetStepLogs returns all step logs for a run
func (s *Store) GetStepLogs(ctx context.Context, runID string) ([]*StepLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, step, detail, error, duration_ms, created_at
		FROM step_logs WHERE run_id = ? ORDER BY created_at ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get step logs: %w", err)
	}
	defer rows.Close()

	var logs []*StepLog
	for rows.Next() {
		var log StepLog
		var detail, errText sql.NullString
		if err := rows.Scan(
			&log.ID, &log.RunID, &log.Step, &detail, &errText,
			&log.Duration, &log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan step log: %w", err)
		}
		log.Detail = detail.String
		log.Error = errText.String
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// SaveExtraction stores the model output recorded for a run
func (s *Store) SaveExtraction(ctx context.Context, ext *Extraction) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO extractions (run_id, summary, account_id, suggested_reply, invoices, model, total_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ext.RunID, ext.Summary, ext.AccountID, ext.SuggestedReply,
		string(ext.Invoices), ext.Model, ext.TotalTokens, ext.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ext.ID = id

	return nil
}

// GetExtraction returns the extraction recorded for a run, if any
func (s *Store) GetExtraction(ctx context.Context, runID string) (*Extraction, error) {
	var ext Extraction
	var invoices sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, summary, account_id, suggested_reply, invoices, model, total_tokens, created_at
		FROM extractions WHERE run_id = ?
	`, runID).Scan(
		&ext.ID, &ext.RunID, &ext.Summary, &ext.AccountID, &ext.SuggestedReply,
		&invoices, &ext.Model, &ext.TotalTokens, &ext.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	if invoices.Valid {
		ext.Invoices = []byte(invoices.String)
	}

	return &ext, nil
}

// GetStats returns run statistics
func (s *Store) GetStats(ctx context.Context) (*RunStats, error) {
	var stats RunStats

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&stats.TotalRuns)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = 'running'`).Scan(&stats.RunningRuns)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = 'completed'`).Scan(&stats.CompletedRuns)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = 'failed'`).Scan(&stats.FailedRuns)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
