package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seantiz/hostrunner/internal/model"

	_ "modernc.org/sqlite"
)

const createExecutionsTable = `
CREATE TABLE IF NOT EXISTS executions (
    id                   TEXT PRIMARY KEY,
    operation            TEXT NOT NULL,
    correlation_id       TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL,
    value                TEXT NOT NULL DEFAULT '',
    simple_display_value TEXT NOT NULL DEFAULT '',
    error                TEXT NOT NULL DEFAULT '',
    duration_ms          REAL,
    queued_at            DATETIME NOT NULL,
    started_at           DATETIME,
    finished_at          DATETIME
)`

const createExecutionsIndex = `
CREATE INDEX IF NOT EXISTS idx_executions_operation ON executions (operation, queued_at)`

const executionColumns = `id, operation, correlation_id, status, value,
	simple_display_value, error, duration_ms, queued_at, started_at, finished_at`

// defaultListLimit applies when a filter carries no limit.
const defaultListLimit = 50

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" opens its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createExecutionsTable, createExecutionsIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate executions: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateExecution inserts a new execution record.
func (s *SQLiteStore) CreateExecution(ctx context.Context, e *model.Execution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (`+executionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Operation, e.CorrelationID, e.Status, e.Value,
		e.SimpleDisplayValue, e.Error, e.DurationMS, e.QueuedAt, e.StartedAt, e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*model.Execution, error) {
	e := &model.Execution{}
	err := row.Scan(
		&e.ID, &e.Operation, &e.CorrelationID, &e.Status, &e.Value,
		&e.SimpleDisplayValue, &e.Error, &e.DurationMS, &e.QueuedAt, &e.StartedAt, &e.FinishedAt,
	)
	return e, err
}

// GetExecution retrieves an execution by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	e, err := scanExecution(s.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// ListExecutions returns a page of executions matching f, newest first,
// along with the total count of matching executions.
func (s *SQLiteStore) ListExecutions(ctx context.Context, f ExecutionFilter) ([]*model.Execution, int, error) {
	var where []string
	var args []any
	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, f.Operation)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := max(f.Offset, 0)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM executions"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+executionColumns+` FROM executions`+clause+` ORDER BY queued_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []*model.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan execution: %w", err)
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate executions: %w", err)
	}

	return executions, total, nil
}

// checkTransition loads the current status of id inside tx and verifies that
// moving to status is allowed.
func checkTransition(ctx context.Context, tx *sql.Tx, id, status string) error {
	var current string
	err := tx.QueryRowContext(ctx, "SELECT status FROM executions WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get execution status: %w", err)
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current, status)
	}
	return nil
}

// UpdateExecutionStatus moves an execution to status. Terminal statuses also
// set finished_at.
func (s *SQLiteStore) UpdateExecutionStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkTransition(ctx, tx, id, status); err != nil {
		return err
	}

	if model.IsTerminal(status) {
		_, err = tx.ExecContext(ctx,
			"UPDATE executions SET status = ?, finished_at = ? WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE executions SET status = ? WHERE id = ?",
			status, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}

	return tx.Commit()
}

// UpdateExecution moves e.ID to e.Status and records every non-empty field
// of e. Terminal statuses without FinishedAt are finished now.
func (s *SQLiteStore) UpdateExecution(ctx context.Context, e *model.Execution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkTransition(ctx, tx, e.ID, e.Status); err != nil {
		return err
	}

	finishedAt := e.FinishedAt
	if finishedAt == nil && model.IsTerminal(e.Status) {
		now := time.Now().UTC()
		finishedAt = &now
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE executions SET
			status = ?,
			correlation_id = COALESCE(NULLIF(?, ''), correlation_id),
			value = COALESCE(NULLIF(?, ''), value),
			simple_display_value = COALESCE(NULLIF(?, ''), simple_display_value),
			error = COALESCE(NULLIF(?, ''), error),
			duration_ms = COALESCE(?, duration_ms),
			started_at = COALESCE(?, started_at),
			finished_at = COALESCE(?, finished_at)
		WHERE id = ?`,
		e.Status, e.CorrelationID, e.Value, e.SimpleDisplayValue, e.Error,
		e.DurationMS, e.StartedAt, finishedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}

	return tx.Commit()
}

// GetExecutionStats aggregates executions by status and operation.
func (s *SQLiteStore) GetExecutionStats(ctx context.Context) (*ExecutionStats, error) {
	stats := &ExecutionStats{
		CountByStatus:    make(map[string]int),
		CountByOperation: make(map[string]int),
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM executions",
	).Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	stats.AvgDurationMS = avg.Float64

	for _, group := range []struct {
		column string
		into   map[string]int
	}{
		{"status", stats.CountByStatus},
		{"operation", stats.CountByOperation},
	} {
		if err := countBy(ctx, tx, group.column, group.into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func countBy(ctx context.Context, tx *sql.Tx, column string, into map[string]int) error {
	rows, err := tx.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM executions GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}
