package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaStatements crea las tablas si no existen. La dimension de los embeddings
// queda fija al crear evidence_embeddings.
func SchemaStatements(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS subjects (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			breed      TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id           TEXT PRIMARY KEY,
			subject_id   TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			type         TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			UNIQUE (subject_id, content_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS personality_snapshots (
			id         TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			version    INTEGER NOT NULL,
			vector     JSONB NOT NULL,
			evidence   JSONB NOT NULL,
			is_current BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (subject_id, version)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS personality_snapshots_current_idx
			ON personality_snapshots (subject_id) WHERE is_current`,
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id          TEXT PRIMARY KEY,
			subject_id  TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			session_id  TEXT NOT NULL,
			user_text   TEXT NOT NULL,
			reply       TEXT NOT NULL,
			intent      TEXT NOT NULL,
			evidence    TEXT[] NOT NULL DEFAULT '{}',
			constraints TEXT[] NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS conversation_turns_session_idx
			ON conversation_turns (subject_id, session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS breed_baselines (
			kind       TEXT NOT NULL,
			breed      TEXT NOT NULL,
			vector     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (kind, breed)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS evidence_embeddings (
			subject_id TEXT NOT NULL,
			id         TEXT NOT NULL,
			content    TEXT NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			embedding  vector(%d) NOT NULL,
			seq        BIGSERIAL,
			PRIMARY KEY (subject_id, id)
		)`, dimensions),
	}
}

// EnsureSchema aplica SchemaStatements en una transaccion.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range SchemaStatements(dimensions) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit(ctx)
}
