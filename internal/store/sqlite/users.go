package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// UserStore implements store.UserStore backed by SQLite.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a user store over an open database.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Get(ctx context.Context, id string) (*store.User, error) {
	var user store.User
	var settings *string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, settings FROM app_user WHERE id = ?`, id,
	).Scan(&user.ID, &user.Name, &user.Email, &settings)
	if err == sql.ErrNoRows {
		return nil, &store.NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if settings != nil && *settings != "" {
		if err := json.Unmarshal([]byte(*settings), &user.Settings); err != nil {
			return nil, fmt.Errorf("decode user settings %s: %w", id, err)
		}
	}
	return &user, nil
}

func (s *UserStore) Upsert(ctx context.Context, user *store.User) error {
	settings, err := json.Marshal(user.Settings)
	if err != nil {
		return fmt.Errorf("marshal user settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_user (id, name, email, settings)
		VALUES (?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, settings = excluded.settings`,
		user.ID, user.Name, user.Email, string(settings))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
