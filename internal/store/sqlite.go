package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seantiz/tickq/internal/engine"
	"github.com/seantiz/tickq/internal/model"

	_ "modernc.org/sqlite"
)

const createDrainsTable = `
CREATE TABLE IF NOT EXISTS drains (
    id          TEXT PRIMARY KEY,
    mode        TEXT NOT NULL,
    queue       TEXT NOT NULL,
    budget_ms   INTEGER,
    tick        INTEGER NOT NULL,
    executed    INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    outcome     TEXT NOT NULL,
    duration_ms REAL NOT NULL,
    started_at  DATETIME NOT NULL
)`

const createFailuresTable = `
CREATE TABLE IF NOT EXISTS failures (
    id         TEXT PRIMARY KEY,
    drain_id   TEXT NOT NULL REFERENCES drains(id),
    queue      TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    message    TEXT NOT NULL,
    tick       INTEGER NOT NULL,
    created_at DATETIME NOT NULL
)`

const createFailuresQueueIndex = `
CREATE INDEX IF NOT EXISTS failures_queue ON failures (queue, id)`

const drainColumns = `id, mode, queue, budget_ms, tick, executed, failed, outcome, duration_ms, started_at`

// ErrNotFound is returned when a drain session is not found.
var ErrNotFound = errors.New("drain not found")

// Compile-time interface satisfaction checks.
var (
	_ Store          = (*SQLiteStore)(nil)
	_ engine.Journal = (*SQLiteStore)(nil)
)

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

	// Every :memory: connection is a separate database.
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

	migrations := []struct {
		name string
		stmt string
	}{
		{"drains table", createDrainsTable},
		{"failures table", createFailuresTable},
		{"failures queue index", createFailuresQueueIndex},
	}
	for _, m := range migrations {
		if _, err := db.Exec(m.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create %s: %w", m.name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordDrain inserts a drain session and its failures in one transaction.
func (s *SQLiteStore) RecordDrain(ctx context.Context, rec *model.DrainRecord, failures []model.FailureRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var budget sql.NullInt64
	if rec.BudgetMS != nil {
		budget = sql.NullInt64{Int64: *rec.BudgetMS, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO drains (`+drainColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Mode, rec.Queue, budget, int64(rec.Tick),
		rec.Executed, rec.Failed, rec.Outcome, rec.DurationMS, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert drain: %w", err)
	}

	if len(failures) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO failures (id, drain_id, queue, seq, message, tick, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare failure insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range failures {
			if _, err := stmt.ExecContext(ctx,
				f.ID, rec.ID, f.Queue, f.Seq, f.Message, int64(f.Tick), f.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert failure: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit drain: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDrain(row scanner) (*model.DrainRecord, error) {
	var (
		rec    model.DrainRecord
		budget sql.NullInt64
		tick   int64
	)
	if err := row.Scan(
		&rec.ID, &rec.Mode, &rec.Queue, &budget, &tick,
		&rec.Executed, &rec.Failed, &rec.Outcome, &rec.DurationMS, &rec.StartedAt,
	); err != nil {
		return nil, err
	}
	if budget.Valid {
		rec.BudgetMS = &budget.Int64
	}
	rec.Tick = uint64(tick)
	return &rec, nil
}

// GetDrain retrieves a drain session by ID.
func (s *SQLiteStore) GetDrain(ctx context.Context, id string) (*model.DrainRecord, error) {
	rec, err := scanDrain(s.db.QueryRowContext(ctx,
		`SELECT `+drainColumns+` FROM drains WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get drain: %w", err)
	}
	return rec, nil
}

// ListDrains returns a page of drain sessions, newest first, along with the
// total count of journaled sessions.
func (s *SQLiteStore) ListDrains(ctx context.Context, limit, offset int) ([]*model.DrainRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM drains").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drains: %w", err)
	}

	// ULIDs sort by creation time.
	rows, err := tx.QueryContext(ctx,
		`SELECT `+drainColumns+` FROM drains ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list drains: %w", err)
	}
	defer rows.Close()

	var drains []*model.DrainRecord
	for rows.Next() {
		rec, err := scanDrain(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan drain: %w", err)
		}
		drains = append(drains, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate drains: %w", err)
	}

	return drains, total, nil
}

// ListFailures returns the most recent failures, newest first. An empty queue
// matches every queue.
func (s *SQLiteStore) ListFailures(ctx context.Context, queue string, limit int) ([]*model.FailureRecord, error) {
	query := `SELECT id, drain_id, queue, seq, message, tick, created_at FROM failures`
	var args []any
	if queue != "" {
		query += ` WHERE queue = ?`
		args = append(args, queue)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []*model.FailureRecord
	for rows.Next() {
		var (
			f    model.FailureRecord
			tick int64
		)
		if err := rows.Scan(&f.ID, &f.DrainID, &f.Queue, &f.Seq, &f.Message, &tick, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Tick = uint64(tick)
		failures = append(failures, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}

// GetDrainStats returns aggregate statistics over all journaled drains.
func (s *SQLiteStore) GetDrainStats(ctx context.Context) (*DrainStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &DrainStats{
		CountByMode:    make(map[string]int),
		CountByOutcome: make(map[string]int),
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(executed), 0), COALESCE(SUM(failed), 0), COALESCE(AVG(duration_ms), 0)
		FROM drains`,
	).Scan(&stats.Total, &stats.TasksExecuted, &stats.TasksFailed, &stats.AvgDurationMS)
	if err != nil {
		return nil, fmt.Errorf("aggregate drains: %w", err)
	}

	if err := countBy(ctx, tx, "mode", stats.CountByMode); err != nil {
		return nil, err
	}
	if err := countBy(ctx, tx, "outcome", stats.CountByOutcome); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills counts with the number of drains per distinct value of column.
// column must be a trusted identifier.
func countBy(ctx context.Context, tx *sql.Tx, column string, counts map[string]int) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM drains GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("count drains by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s counts: %w", column, err)
	}
	return nil
}
