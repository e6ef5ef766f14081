package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"invoice-tracker/internal/common"
)

// DB wraps the database handle plus the underlying pgx pool when the
// postgres driver is in use. Both backends are driven through
// database/sql with $N placeholders, which sqlite and postgres both
// accept, so the repositories carry a single set of queries.
type DB struct {
	SQL    *sql.DB
	Driver string

	pool *pgxpool.Pool
}

// Open connects using cfg.Driver ("postgres" or "sqlite") and applies
// the schema migration.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", cfg.Driver)

	var db *DB
	switch cfg.Driver {
	case "postgres":
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("failed to parse database config", "error", err)
			return nil, err
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "invoice-tracker"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
		}

		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return nil, err
		}
		db = &DB{SQL: stdlib.OpenDBFromPool(pool), Driver: cfg.Driver, pool: pool}
	case "sqlite":
		h, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("failed to open sqlite database", "error", err)
			return nil, err
		}
		// modernc sqlite is single-writer; serialize access.
		h.SetMaxOpenConns(1)
		db = &DB{SQL: h, Driver: cfg.Driver}
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("successfully connected to database")
	return db, nil
}

// Close closes the database connections gracefully.
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if d.SQL != nil {
		if err := d.SQL.Close(); err != nil {
			logger.Error("failed to close database handle", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.SQL.PingContext(ctx)
}

// schemaDDL sticks to type names both backends accept.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS profiles (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL UNIQUE,
	default_currency TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS receipt_files (
	id           TEXT PRIMARY KEY,
	profile_id   TEXT NOT NULL REFERENCES profiles(id),
	receipt_id   TEXT,
	source_path  TEXT NOT NULL,
	filename     TEXT NOT NULL,
	file_ext     TEXT NOT NULL,
	file_size    BIGINT NOT NULL,
	content_hash TEXT NOT NULL,
	uploaded_at  TIMESTAMP NOT NULL,
	UNIQUE (profile_id, content_hash)
);

CREATE TABLE IF NOT EXISTS extract_jobs (
	id             TEXT PRIMARY KEY,
	file_id        TEXT NOT NULL REFERENCES receipt_files(id),
	profile_id     TEXT NOT NULL REFERENCES profiles(id),
	receipt_id     TEXT,
	format         TEXT NOT NULL,
	status         TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP,
	error_message  TEXT,
	confidence     REAL,
	needs_review   BOOLEAN NOT NULL DEFAULT FALSE,
	ocr_text       TEXT,
	ocr_method     TEXT,
	extracted_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_extract_jobs_profile_status ON extract_jobs (profile_id, status, started_at);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_file ON extract_jobs (file_id);

CREATE TABLE IF NOT EXISTS receipts (
	id            TEXT PRIMARY KEY,
	profile_id    TEXT NOT NULL REFERENCES profiles(id),
	merchant_name TEXT NOT NULL DEFAULT '',
	tx_date_raw   TEXT NOT NULL DEFAULT '',
	subtotal      DOUBLE PRECISION,
	tax           DOUBLE PRECISION,
	total         DOUBLE PRECISION,
	currency_code TEXT NOT NULL,
	category_name TEXT NOT NULL DEFAULT 'Other',
	raw_text      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_receipts_profile_created ON receipts (profile_id, created_at);

CREATE TABLE IF NOT EXISTS receipt_items (
	id         TEXT PRIMARY KEY,
	receipt_id TEXT NOT NULL REFERENCES receipts(id),
	position   INTEGER NOT NULL,
	name       TEXT NOT NULL,
	price      DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_receipt_items_receipt ON receipt_items (receipt_id, position);
`

// Migrate applies the idempotent DDL. Statements run one at a time:
// the pgx stdlib driver rejects multi-statement commands on its
// default extended protocol.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ddl %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
