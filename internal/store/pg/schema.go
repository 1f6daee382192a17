package pg

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the engine's tables when they do not exist yet.
// Production deployments run real migrations; this keeps fresh local
// databases usable.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_prompt (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			cron_expression TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			model_id TEXT NOT NULL,
			system_prompt TEXT,
			prompt TEXT NOT NULL,
			chat_id TEXT,
			create_new_chat BOOLEAN NOT NULL DEFAULT TRUE,
			run_once BOOLEAN NOT NULL DEFAULT FALSE,
			tool_ids JSONB,
			function_calling_mode TEXT NOT NULL DEFAULT 'default',
			last_run_at BIGINT,
			next_run_at BIGINT,
			last_status TEXT,
			last_error TEXT,
			run_count INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS scheduled_prompt_user_id_idx ON scheduled_prompt (user_id)`,
		`CREATE INDEX IF NOT EXISTS scheduled_prompt_enabled_next_run_idx ON scheduled_prompt (enabled, next_run_at)`,
		`CREATE TABLE IF NOT EXISTS chat (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chat_user_id_idx ON chat (user_id)`,
		`CREATE TABLE IF NOT EXISTS app_user (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			settings JSONB
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
