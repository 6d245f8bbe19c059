package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/session"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore keeps sessions, dedup records and the lead outbox in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ session.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database file named by the DSN, creating its directory and schema.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "dsn", dsn)
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get loads the session snapshot with id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return session.Decode([]byte(data))
}

// Put upserts the session snapshot and its index columns.
func (s *SQLiteStore) Put(ctx context.Context, sess *session.Session) error {
	data, err := session.Encode(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, channel, address, phone, data, last_activity, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET channel = excluded.channel, address = excluded.address, phone = excluded.phone,
		 data = excluded.data, last_activity = excluded.last_activity, updated_at = excluded.updated_at`,
		sess.ID, string(sess.Channel), sess.Address, nilIfEmpty(sess.Phone), string(data),
		sess.LastActivity.UTC(), time.Now().UTC(),
	)
	if err != nil {
		slog.Error("SQLiteStore.Put failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to store session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes the session with id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// GetByPhone returns the most recently stored session for phone.
func (s *SQLiteStore) GetByPhone(ctx context.Context, phone string) (*session.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE phone = ? ORDER BY updated_at DESC LIMIT 1`, phone,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session by phone: %w", err)
	}
	return session.Decode([]byte(data))
}

// SweepExpired deletes sessions whose last activity is older than timeout.
func (s *SQLiteStore) SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < ?`, now.Add(-timeout).UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteByAddress deletes every session of ch opened against address.
func (s *SQLiteStore) DeleteByAddress(ctx context.Context, ch models.Channel, address string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE channel = ? AND address = ?`, string(ch), address)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions for %s %s: %w", ch, address, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the number of stored sessions.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
