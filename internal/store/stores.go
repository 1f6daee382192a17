package store

import "context"

// ExecutionUpdate is the atomic per-run state transition applied by the
// scheduler after each attempt. NextRunAt nil clears the column (one-shot
// jobs); a non-nil value advances the schedule. ChatID is applied only
// when non-empty. RunCount is incremented exactly once per update.
type ExecutionUpdate struct {
	Status    string
	Error     string
	ChatID    string
	NextRunAt *int64
}

// JobStore persists scheduled-prompt records and their execution state.
//
// Due may keep returning a job on subsequent polls until UpdateExecution
// advances its next_run_at past now (or the job is disabled). Updates are
// atomic per row, last writer wins across the execution-state fields.
type JobStore interface {
	Insert(ctx context.Context, job *ScheduledJob) error
	Get(ctx context.Context, id string) (*ScheduledJob, error)
	ListByUser(ctx context.Context, userID string) ([]ScheduledJob, error)

	// Due returns all jobs with enabled = true and next_run_at <= now
	// (non-null), ordered ascending by next_run_at.
	Due(ctx context.Context, now int64) ([]ScheduledJob, error)

	UpdateExecution(ctx context.Context, id string, upd ExecutionUpdate) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
	SetNextRunAt(ctx context.Context, id string, nextRunAt int64) error
	Delete(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

// ChatStore persists chat transcripts. The engine either creates a new
// chat or appends a user+assistant pair to an existing one; it never
// deletes.
type ChatStore interface {
	Insert(ctx context.Context, chat *Chat) (*Chat, error)
	Get(ctx context.Context, id string) (*Chat, error)
	AppendMessages(ctx context.Context, id string, msgs []ChatMessage) error
}

// UserStore resolves job owners. Read-only from the engine's perspective.
type UserStore interface {
	Get(ctx context.Context, id string) (*User, error)
	Upsert(ctx context.Context, user *User) error
}

// NotFoundError is returned by Get operations when no row matches.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " " + e.ID + " not found"
}

// IsNotFound reports whether err is a store NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
