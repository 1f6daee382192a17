package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// JobStore implements store.JobStore backed by SQLite.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates a job store over an open database.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, user_id, name, cron_expression, timezone, enabled, model_id,
	system_prompt, prompt, chat_id, create_new_chat, run_once, tool_ids,
	function_calling_mode, last_run_at, next_run_at, last_status, last_error,
	run_count, created_at, updated_at`

func scanJob(row rowScanner) (*store.ScheduledJob, error) {
	var job store.ScheduledJob
	var systemPrompt, chatID, lastStatus, lastError, toolIDs *string

	err := row.Scan(
		&job.ID, &job.UserID, &job.Name, &job.CronExpression, &job.Timezone,
		&job.Enabled, &job.ModelID, &systemPrompt, &job.Prompt, &chatID,
		&job.CreateNewChat, &job.RunOnce, &toolIDs, &job.FunctionCallingMode,
		&job.LastRunAt, &job.NextRunAt, &lastStatus, &lastError,
		&job.RunCount, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.SystemPrompt = derefStr(systemPrompt)
	job.ChatID = derefStr(chatID)
	job.LastStatus = derefStr(lastStatus)
	job.LastError = derefStr(lastError)
	unmarshalStringSlice(toolIDs, &job.ToolIDs)
	return &job, nil
}

func (s *JobStore) Insert(ctx context.Context, job *store.ScheduledJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := nowUnix()
	if job.CreatedAt == 0 {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_prompt (`+jobColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		job.ID, job.UserID, job.Name, job.CronExpression, job.Timezone,
		job.Enabled, job.ModelID, nilStr(job.SystemPrompt), job.Prompt,
		nilStr(job.ChatID), job.CreateNewChat, job.RunOnce,
		marshalStringSlice(job.ToolIDs), job.FunctionCallingMode,
		job.LastRunAt, job.NextRunAt, nilStr(job.LastStatus),
		nilStr(job.LastError), job.RunCount, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled prompt: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*store.ScheduledJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scheduled_prompt WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, &store.NotFoundError{Kind: "scheduled prompt", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled prompt: %w", err)
	}
	return job, nil
}

func (s *JobStore) ListByUser(ctx context.Context, userID string) ([]store.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM scheduled_prompt WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled prompts: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *JobStore) Due(ctx context.Context, now int64) ([]store.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM scheduled_prompt
		WHERE enabled = 1 AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("due scheduled prompts: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]store.ScheduledJob, error) {
	var jobs []store.ScheduledJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled prompt: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *JobStore) UpdateExecution(ctx context.Context, id string, upd store.ExecutionUpdate) error {
	now := nowUnix()
	var err error
	if upd.ChatID != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE scheduled_prompt
			SET last_run_at = ?, last_status = ?, last_error = ?,
				run_count = run_count + 1, next_run_at = ?, chat_id = ?, updated_at = ?
			WHERE id = ?`,
			now, upd.Status, nilStr(upd.Error), upd.NextRunAt, upd.ChatID, now, id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE scheduled_prompt
			SET last_run_at = ?, last_status = ?, last_error = ?,
				run_count = run_count + 1, next_run_at = ?, updated_at = ?
			WHERE id = ?`,
			now, upd.Status, nilStr(upd.Error), upd.NextRunAt, now, id)
	}
	if err != nil {
		return fmt.Errorf("update execution status: %w", err)
	}
	return nil
}

func (s *JobStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_prompt SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, nowUnix(), id)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	return nil
}

func (s *JobStore) SetNextRunAt(ctx context.Context, id string, nextRunAt int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_prompt SET next_run_at = ?, updated_at = ? WHERE id = ?`,
		nextRunAt, nowUnix(), id)
	if err != nil {
		return fmt.Errorf("set next run: %w", err)
	}
	return nil
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_prompt WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled prompt: %w", err)
	}
	return nil
}

func (s *JobStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_prompt WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count scheduled prompts: %w", err)
	}
	return count, nil
}
