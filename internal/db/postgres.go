package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// schema is applied at startup with IF NOT EXISTS guards, so a restart
// against an existing database is a no-op. The cascade on user deletion is
// done by explicit ordered statements in the repository, which is why no
// ON DELETE CASCADE appears here — the ordering invariant lives in code
// where it can be read and tested, not in schema configuration.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		display_name  TEXT,
		role          TEXT NOT NULL DEFAULT 'worker',
		is_online     BOOLEAN NOT NULL DEFAULT false,
		last_seen     TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id           BIGSERIAL PRIMARY KEY,
		from_user_id BIGINT NOT NULL REFERENCES users(id),
		content      TEXT NOT NULL,
		is_broadcast BOOLEAN NOT NULL DEFAULT false,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS message_recipients (
		message_id BIGINT NOT NULL REFERENCES messages(id),
		to_user_id BIGINT NOT NULL REFERENCES users(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_from_user ON messages (from_user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recipients_message ON message_recipients (message_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recipients_user ON message_recipients (to_user_id)`,
}

// New creates a pooled connection from a Postgres URL. One pool for the
// whole process; requests acquire and release connections through it instead
// of opening their own.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	// Pool tuning: enough headroom for bursty directory and conversation
	// reads without exhausting the server's connection slots, warm
	// connections to avoid cold-start latency, hourly recycling so stale
	// TCP connections and failovers don't linger.
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 20 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	logger.Info("DB connection established",
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return &DB{
		pool:   pool,
		logger: logger,
	}, nil
}

// Migrate applies the schema statements in order.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	db.logger.Info("schema up to date")
	return nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
