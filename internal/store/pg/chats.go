package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// chatBody is the JSON blob stored in the chat.data column.
type chatBody struct {
	Messages []store.ChatMessage `json:"messages"`
	Models   []string            `json:"models,omitempty"`
	ToolIDs  []string            `json:"tool_ids,omitempty"`
}

// PGChatStore implements store.ChatStore backed by Postgres.
type PGChatStore struct {
	db *sql.DB
}

// NewPGChatStore creates a chat store over an open database.
func NewPGChatStore(db *sql.DB) *PGChatStore {
	return &PGChatStore{db: db}
}

func (s *PGChatStore) Insert(ctx context.Context, chat *store.Chat) (*store.Chat, error) {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	now := nowUnix()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	body, err := json.Marshal(chatBody{Messages: chat.Messages, Models: chat.Models, ToolIDs: chat.ToolIDs})
	if err != nil {
		return nil, fmt.Errorf("marshal chat: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat (id, user_id, title, data, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		chat.ID, chat.UserID, chat.Title, body, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

func (s *PGChatStore) Get(ctx context.Context, id string) (*store.Chat, error) {
	var chat store.Chat
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, data, created_at, updated_at FROM chat WHERE id = $1`, id,
	).Scan(&chat.ID, &chat.UserID, &chat.Title, &data, &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &store.NotFoundError{Kind: "chat", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}

	var body chatBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode chat %s: %w", id, err)
	}
	chat.Messages = body.Messages
	chat.Models = body.Models
	chat.ToolIDs = body.ToolIDs
	return &chat, nil
}

// AppendMessages adds messages to an existing chat under row lock so
// concurrent appends do not lose entries.
func (s *PGChatStore) AppendMessages(ctx context.Context, id string, msgs []store.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM chat WHERE id = $1 FOR UPDATE`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return &store.NotFoundError{Kind: "chat", ID: id}
	}
	if err != nil {
		return fmt.Errorf("lock chat: %w", err)
	}

	var body chatBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("decode chat %s: %w", id, err)
	}
	body.Messages = append(body.Messages, msgs...)

	updated, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal chat: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chat SET data = $1, updated_at = $2 WHERE id = $3`,
		updated, nowUnix(), id); err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	return tx.Commit()
}
