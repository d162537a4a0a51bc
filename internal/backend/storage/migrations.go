package storage

import (
	"context"
	"fmt"
	"log/slog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS owners (
		id             TEXT PRIMARY KEY,
		email          TEXT NOT NULL UNIQUE,
		api_key_prefix TEXT UNIQUE,
		api_key_hash   TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS monitors (
		id               TEXT PRIMARY KEY,
		owner_id         TEXT NOT NULL REFERENCES owners(id) ON DELETE CASCADE,
		name             TEXT NOT NULL,
		key              TEXT NOT NULL UNIQUE,
		secret           TEXT,
		interval_minutes INTEGER NOT NULL CHECK (interval_minutes >= 1),
		grace_period     INTEGER NOT NULL CHECK (grace_period >= 0),
		use_smart_grace  BOOLEAN NOT NULL DEFAULT FALSE,
		status           TEXT NOT NULL CHECK (status IN ('PENDING', 'UP', 'DOWN')),
		last_ping        TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		CHECK (secret IS NULL OR secret <> key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_monitors_owner ON monitors (owner_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_monitors_up ON monitors (status) WHERE status = 'UP'`,
	`CREATE TABLE IF NOT EXISTS ping_events (
		id            TEXT PRIMARY KEY,
		monitor_id    TEXT NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
		drift_seconds BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ping_events_monitor ON ping_events (monitor_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS downtimes (
		id               TEXT PRIMARY KEY,
		monitor_id       TEXT NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
		started_at       TIMESTAMPTZ NOT NULL,
		ended_at         TIMESTAMPTZ,
		duration_minutes INTEGER,
		CHECK (ended_at IS NULL OR ended_at >= started_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_downtimes_monitor ON downtimes (monitor_id, started_at DESC)`,
	// не больше одного открытого простоя на монитор
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_downtimes_one_open ON downtimes (monitor_id) WHERE ended_at IS NULL`,
}

// EnsureSchema создает таблицы и индексы, если их нет
func EnsureSchema(ctx context.Context, db Database, log *slog.Logger) error {
	pg, ok := db.(*postgresDatabase)
	if !ok {
		return nil
	}

	for i, stmt := range schema {
		if _, err := pg.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}

	log.Info("database schema is up to date", "statements", len(schema))
	return nil
}
