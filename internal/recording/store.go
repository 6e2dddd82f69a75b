// Package recording persists receiver session summaries in SQLite.
package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/A-ESxARG/receiver/internal/recording/migrations"
)

// ErrDuplicateTick is returned when a tick is recorded twice for a session.
var ErrDuplicateTick = errors.New("tick already recorded")

// Session identifies one recorded run.
type Session struct {
	ID        int64
	Name      string
	Seed      int64
	StartedAt time.Time
}

// Tick is the persisted summary of one receiver step.
type Tick struct {
	Tick     uint64
	Time     float64
	Value    float64
	Entropy  float64
	Energy   float64
	Phase    string
	Band     string
	Richness *float64
}

// Store persists sessions and ticks.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite recording file and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("recording path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// StartSession inserts a session row.
func (s *Store) StartSession(ctx context.Context, name string, seed int64, startedAt time.Time) (Session, error) {
	if s == nil || s.sqlDB == nil {
		return Session{}, fmt.Errorf("storage is not configured")
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	startedAt = time.UnixMilli(startedAt.UTC().UnixMilli()).UTC()
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (name, seed, started_at) VALUES (?, ?, ?)`,
		name, seed, startedAt.UnixMilli(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Session{}, fmt.Errorf("session id: %w", err)
	}
	return Session{ID: id, Name: name, Seed: seed, StartedAt: startedAt}, nil
}

// AppendTicks writes ticks for a session in one transaction.
func (s *Store) AppendTicks(ctx context.Context, sessionID int64, ticks []Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ticks (
	   session_id, tick, sim_time, value, entropy, energy, phase, band, richness
	 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, t := range ticks {
		var richness sql.NullFloat64
		if t.Richness != nil {
			richness = sql.NullFloat64{Float64: *t.Richness, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID, int64(t.Tick), t.Time, t.Value, t.Entropy, t.Energy, t.Phase, t.Band, richness,
		); err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return fmt.Errorf("append tick %d: %w", t.Tick, ErrDuplicateTick)
			}
			return fmt.Errorf("append tick %d: %w", t.Tick, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Ticks returns a session's ticks in step order.
func (s *Store) Ticks(ctx context.Context, sessionID int64) ([]Tick, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT tick, sim_time, value, entropy, energy, phase, band, richness
		   FROM ticks WHERE session_id = ? ORDER BY tick`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []Tick
	for rows.Next() {
		var (
			t        Tick
			tick     int64
			richness sql.NullFloat64
		)
		if err := rows.Scan(&tick, &t.Time, &t.Value, &t.Entropy, &t.Energy, &t.Phase, &t.Band, &richness); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		t.Tick = uint64(tick)
		if richness.Valid {
			v := richness.Float64
			t.Richness = &v
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return ticks, nil
}

// Sessions lists recorded sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, seed, started_at FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			session Session
			started int64
		)
		if err := rows.Scan(&session.ID, &session.Name, &session.Seed, &started); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.StartedAt = time.UnixMilli(started).UTC()
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
