package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// PGUserStore implements store.UserStore backed by Postgres. The engine
// only reads users; Upsert exists for seeding and tooling.
type PGUserStore struct {
	db *sql.DB
}

// NewPGUserStore creates a user store over an open database.
func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) Get(ctx context.Context, id string) (*store.User, error) {
	var user store.User
	var settings []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, settings FROM app_user WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &user.Email, &settings)
	if err == sql.ErrNoRows {
		return nil, &store.NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &user.Settings); err != nil {
			return nil, fmt.Errorf("decode user settings %s: %w", id, err)
		}
	}
	return &user, nil
}

func (s *PGUserStore) Upsert(ctx context.Context, user *store.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_user (id, name, email, settings)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name = $2, email = $3, settings = $4`,
		user.ID, user.Name, user.Email, jsonOrNull(user.Settings))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
