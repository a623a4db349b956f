// Package store persists the event cache, sync tokens, outbox and feed cache
// in the per-session typec.db.
package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the SQLite connection for the app-owned typec.db.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// Option configures Open.
type Option func(*DB)

// WithLogger routes migration progress to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// pragmas are applied on every pooled connection through the DSN.
var pragmas = url.Values{
	"_journal_mode": {"WAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
	"_synchronous":  {"NORMAL"},
}

func Open(path string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", "file:"+path+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	db := &DB{DB: sqlDB, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}
