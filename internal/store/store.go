// Package store provides persistent backends for LeadPipe: session snapshots, inbound message
// deduplication and the lead outbox.
//
// SQLite and PostgreSQL share one schema (see the embedded migrations); Redis serves sessions only,
// for deployments that run several replicas behind one load balancer.
package store

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/session"
)

// DSN types returned by DetectDSNType.
const (
	DSNTypeSQLite   = "sqlite"
	DSNTypePostgres = "postgres"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // Data source name: a file path for SQLite or a connection string for Postgres
}

// Option defines a configuration option for stores.
type Option func(*Opts)

// WithDSN sets the data source name.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Backend is a persistent session store that also keeps the dedup table and the lead outbox.
type Backend interface {
	session.Store
	DedupRepo
	OutboxRepo
	Close() error
}

// DetectDSNType reports whether dsn addresses Postgres or a SQLite file.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") || strings.Contains(d, "host=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// Open creates the backend matching the configured DSN.
func Open(opts ...Option) (Backend, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	kind := DetectDSNType(cfg.DSN)
	slog.Debug("store.Open: opening backend", "type", kind)
	if kind == DSNTypePostgres {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
