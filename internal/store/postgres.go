package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/session"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore keeps sessions, dedup records and the lead outbox in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ session.Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database named by the DSN and applies the schema.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Get loads the session snapshot with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return session.Decode(data)
}

// Put upserts the session snapshot and its index columns.
func (s *PostgresStore) Put(ctx context.Context, sess *session.Session) error {
	data, err := session.Encode(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, channel, address, phone, data, last_activity, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET channel = EXCLUDED.channel, address = EXCLUDED.address, phone = EXCLUDED.phone,
		 data = EXCLUDED.data, last_activity = EXCLUDED.last_activity, updated_at = EXCLUDED.updated_at`,
		sess.ID, string(sess.Channel), sess.Address, nilIfEmpty(sess.Phone), string(data),
		sess.LastActivity, time.Now(),
	)
	if err != nil {
		slog.Error("PostgresStore.Put failed", "error", err, "session", sess.ID)
		return fmt.Errorf("failed to store session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes the session with id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// GetByPhone returns the most recently stored session for phone.
func (s *PostgresStore) GetByPhone(ctx context.Context, phone string) (*session.Session, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE phone = $1 ORDER BY updated_at DESC LIMIT 1`, phone,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session by phone: %w", err)
	}
	return session.Decode(data)
}

// SweepExpired deletes sessions whose last activity is older than timeout.
func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time, timeout time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < $1`, now.Add(-timeout))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteByAddress deletes every session of ch opened against address.
func (s *PostgresStore) DeleteByAddress(ctx context.Context, ch models.Channel, address string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE channel = $1 AND address = $2`, string(ch), address)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions for %s %s: %w", ch, address, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count returns the number of stored sessions.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
