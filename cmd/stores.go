package cmd

import (
	"context"

	"github.com/nextlevelbuilder/promptsched/internal/config"
	"github.com/nextlevelbuilder/promptsched/internal/store"
	"github.com/nextlevelbuilder/promptsched/internal/store/pg"
	"github.com/nextlevelbuilder/promptsched/internal/store/sqlite"
)

// storeSet bundles the three persistence contracts over one database.
type storeSet struct {
	jobs  store.JobStore
	chats store.ChatStore
	users store.UserStore
}

// openStores opens Postgres when DATABASE_URL is set, otherwise the local
// SQLite file.
func openStores(cfg *config.Config) (*storeSet, func() error, error) {
	if cfg.DatabaseURL != "" {
		db, err := pg.OpenDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(context.Background(), db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return &storeSet{
			jobs:  pg.NewPGJobStore(db),
			chats: pg.NewPGChatStore(db),
			users: pg.NewPGUserStore(db),
		}, db.Close, nil
	}

	db, err := sqlite.OpenDB(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return &storeSet{
		jobs:  sqlite.NewJobStore(db),
		chats: sqlite.NewChatStore(db),
		users: sqlite.NewUserStore(db),
	}, db.Close, nil
}
