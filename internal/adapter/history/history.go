package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS live_sessions (
	session_id  uuid PRIMARY KEY,
	identifier  text        NOT NULL,
	started_at  timestamptz,
	ended_at    timestamptz NOT NULL,
	duration_s  double precision NOT NULL DEFAULT 0,
	recorded_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS live_sessions_identifier_idx ON live_sessions (identifier, ended_at DESC);
`

const insertSQL = `
INSERT INTO live_sessions (session_id, identifier, started_at, ended_at, duration_s)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id) DO NOTHING`

// PgHistory archives ended sessions in Postgres.
type PgHistory struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// Simple protocol so the schema can run as one multi-statement exec.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

func NewPgHistory(pool *pgxpool.Pool) *PgHistory {
	return &PgHistory{pool: pool}
}

func (h *PgHistory) ApplySchema(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Record is idempotent per session id, so redelivered events are harmless.
func (h *PgHistory) Record(ctx context.Context, ev *model.LifecycleEvent) error {
	if _, err := h.pool.Exec(ctx, insertSQL, recordArgs(ev)...); err != nil {
		return fmt.Errorf("insert live session %s: %w", ev.SessionID, err)
	}
	return nil
}

func (h *PgHistory) Close() {
	h.pool.Close()
}

func recordArgs(ev *model.LifecycleEvent) []any {
	ended := time.UnixMilli(ev.OccurredAt).UTC()
	if ev.EndTime != nil {
		ended = *ev.EndTime
	}
	return []any{ev.SessionID, ev.Identifier, ev.StartTime, ended, ev.Duration}
}

// Noop is used when no database is configured.
type Noop struct{}

func (Noop) Record(context.Context, *model.LifecycleEvent) error { return nil }
