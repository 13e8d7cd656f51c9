package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/glazeui/glaze/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// HistoryStore persists finished transitions in SQLite. It implements
// engine.HistoryRecorder.
type HistoryStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewHistoryStore creates a store instance. Init must be called before
// use.
func NewHistoryStore(cfg Config) (*HistoryStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &HistoryStore{path: cfg.Path, cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode.
func (s *HistoryStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded sources.
func (s *HistoryStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("creating database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Open creates, initializes, and migrates a store in one call.
func Open(ctx context.Context, cfg Config) (*HistoryStore, error) {
	store, err := NewHistoryStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// RecordTransition persists one finished session.
func (s *HistoryStore) RecordTransition(ctx context.Context, rec engine.HistoryRecord) error {
	query := `
		INSERT INTO transitions (session_id, descriptor, status, duration_ms, update_count,
			animations_started, animations_skipped, violations, started_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.Descriptor,
		rec.Status,
		rec.Duration.Milliseconds(),
		rec.UpdateCount,
		rec.AnimationsStarted,
		rec.AnimationsSkipped,
		rec.Violations,
		rec.StartedAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording transition: %w", err)
	}
	return nil
}

// GetTransition retrieves a recorded session by session id.
func (s *HistoryStore) GetTransition(ctx context.Context, sessionID string) (*TransitionRow, error) {
	query := `
		SELECT id, session_id, descriptor, status, duration_ms, update_count,
			animations_started, animations_skipped, violations, started_at, recorded_at
		FROM transitions
		WHERE session_id = ?
	`
	row := &TransitionRow{}
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&row.ID,
		&row.SessionID,
		&row.Descriptor,
		&row.Status,
		&row.DurationMs,
		&row.UpdateCount,
		&row.AnimationsStarted,
		&row.AnimationsSkipped,
		&row.Violations,
		&row.StartedAt,
		&row.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition not found: %s", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transition: %w", err)
	}
	return row, nil
}

// ListTransitions lists recorded sessions newest first.
func (s *HistoryStore) ListTransitions(ctx context.Context, limit, offset int) ([]*TransitionRow, error) {
	query := `
		SELECT id, session_id, descriptor, status, duration_ms, update_count,
			animations_started, animations_skipped, violations, started_at, recorded_at
		FROM transitions
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing transitions: %w", err)
	}
	defer rows.Close()

	list := []*TransitionRow{}
	for rows.Next() {
		row := &TransitionRow{}
		err := rows.Scan(
			&row.ID,
			&row.SessionID,
			&row.Descriptor,
			&row.Status,
			&row.DurationMs,
			&row.UpdateCount,
			&row.AnimationsStarted,
			&row.AnimationsSkipped,
			&row.Violations,
			&row.StartedAt,
			&row.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return list, nil
}

// ListByDescriptor lists recorded sessions for one descriptor key.
func (s *HistoryStore) ListByDescriptor(ctx context.Context, descriptor string, limit int) ([]*TransitionRow, error) {
	query := `
		SELECT id, session_id, descriptor, status, duration_ms, update_count,
			animations_started, animations_skipped, violations, started_at, recorded_at
		FROM transitions
		WHERE descriptor = ?
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, descriptor, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transitions by descriptor: %w", err)
	}
	defer rows.Close()

	list := []*TransitionRow{}
	for rows.Next() {
		row := &TransitionRow{}
		err := rows.Scan(
			&row.ID,
			&row.SessionID,
			&row.Descriptor,
			&row.Status,
			&row.DurationMs,
			&row.UpdateCount,
			&row.AnimationsStarted,
			&row.AnimationsSkipped,
			&row.Violations,
			&row.StartedAt,
			&row.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return list, nil
}

// Summarize aggregates the recorded history.
func (s *HistoryStore) Summarize(ctx context.Context) (*Summary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(CASE WHEN status = 'completed' THEN duration_ms END), 0),
			COALESCE(SUM(violations), 0)
		FROM transitions
	`
	sum := &Summary{}
	err := s.db.QueryRowContext(ctx, query).Scan(
		&sum.Total,
		&sum.Completed,
		&sum.Cancelled,
		&sum.Failed,
		&sum.AvgDurationMs,
		&sum.TotalViolations,
	)
	if err != nil {
		return nil, fmt.Errorf("summarizing transitions: %w", err)
	}
	return sum, nil
}

// PruneBefore deletes sessions started before the cutoff and returns
// the number of rows removed.
func (s *HistoryStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM transitions WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning transitions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return rows, nil
}
