// Package sqlite implements the job, chat, and user stores on a local
// SQLite database for single-node deployments.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenDB opens (creating if needed) the SQLite database at path and
// applies the engine schema. Use ":memory:" for tests.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time; serialize through one conn.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("sqlite opened", "path", path)
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_prompt (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			cron_expression TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			enabled INTEGER NOT NULL DEFAULT 1,
			model_id TEXT NOT NULL,
			system_prompt TEXT,
			prompt TEXT NOT NULL,
			chat_id TEXT,
			create_new_chat INTEGER NOT NULL DEFAULT 1,
			run_once INTEGER NOT NULL DEFAULT 0,
			tool_ids TEXT,
			function_calling_mode TEXT NOT NULL DEFAULT 'default',
			last_run_at INTEGER,
			next_run_at INTEGER,
			last_status TEXT,
			last_error TEXT,
			run_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS scheduled_prompt_user_id_idx ON scheduled_prompt (user_id)`,
		`CREATE INDEX IF NOT EXISTS scheduled_prompt_enabled_next_run_idx ON scheduled_prompt (enabled, next_run_at)`,
		`CREATE TABLE IF NOT EXISTS chat (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chat_user_id_idx ON chat (user_id)`,
		`CREATE TABLE IF NOT EXISTS app_user (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			settings TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- shared helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func nilStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func marshalStringSlice(arr []string) any {
	if arr == nil {
		return nil
	}
	data, err := json.Marshal(arr)
	if err != nil {
		return nil
	}
	return string(data)
}

func unmarshalStringSlice(data *string, dest *[]string) {
	if data == nil || *data == "" {
		return
	}
	json.Unmarshal([]byte(*data), dest)
}

func nowUnix() int64 {
	return time.Now().Unix()
}
