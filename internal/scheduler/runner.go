package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nextlevelbuilder/promptsched/internal/cron"
	"github.com/nextlevelbuilder/promptsched/internal/modelclient"
	"github.com/nextlevelbuilder/promptsched/internal/models"
	"github.com/nextlevelbuilder/promptsched/internal/notify"
	"github.com/nextlevelbuilder/promptsched/internal/repair"
	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// selfSchedulingMarker flags tools that can create new scheduled prompts.
// Excluding them from action tools breaks the cycle where a scheduled run
// schedules more runs.
const selfSchedulingMarker = "prompt_scheduler"

// chatTitlePrefix marks chats created by the engine.
const chatTitlePrefix = "[Scheduled] "

// titlePromptLen is how much of the prompt becomes the chat title when
// the job has no name.
const titlePromptLen = 50

// previewLen clips the assistant response carried in the run outcome.
const previewLen = 200

// RunOutcome is the transient result of one run attempt; it drives the
// notifier payloads and is never persisted.
type RunOutcome struct {
	Success         bool
	ChatID          string
	ResponsePreview string
	Error           string
}

// Runner executes a single due job end to end: resolve the owner and
// model, run the repair pipeline, persist the transcript, advance the job
// state, and notify.
type Runner struct {
	jobs      store.JobStore
	chats     store.ChatStore
	users     store.UserStore
	registry  *models.Registry
	pipeline  *repair.Pipeline
	evaluator *cron.Evaluator
	notifier  *notify.Notifier
	tracer    trace.Tracer
}

// NewRunner wires a Runner. A nil tracer disables span recording.
func NewRunner(
	jobs store.JobStore,
	chats store.ChatStore,
	users store.UserStore,
	registry *models.Registry,
	pipeline *repair.Pipeline,
	evaluator *cron.Evaluator,
	notifier *notify.Notifier,
	tracer trace.Tracer,
) *Runner {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("promptsched")
	}
	return &Runner{
		jobs:      jobs,
		chats:     chats,
		users:     users,
		registry:  registry,
		pipeline:  pipeline,
		evaluator: evaluator,
		notifier:  notifier,
		tracer:    tracer,
	}
}

// Execute runs one job attempt. Errors are terminal for this attempt
// only: they update the job's execution state, fire an error
// notification, and never propagate.
func (r *Runner) Execute(ctx context.Context, job store.ScheduledJob) RunOutcome {
	slog.Info("executing scheduled prompt", "id", job.ID, "name", job.Name)

	ctx, span := r.tracer.Start(ctx, "scheduled_prompt.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("prompt.id", job.ID),
			attribute.String("prompt.model", job.ModelID),
		))
	defer span.End()

	user, err := r.users.Get(ctx, job.UserID)
	if err != nil {
		return r.fail(ctx, span, job, nil, fmt.Errorf("user %s not found: %w", job.UserID, err))
	}

	outcome, err := r.run(ctx, job, user)
	if err != nil {
		return r.fail(ctx, span, job, user, err)
	}

	span.SetStatus(codes.Ok, "")
	r.advance(ctx, job, store.ExecutionUpdate{
		Status: store.StatusSuccess,
		ChatID: outcome.ChatID,
	})
	r.notifier.Notify(ctx, user, notify.Outcome{
		JobID:   job.ID,
		JobName: job.Name,
		Success: true,
		RunOnce: job.RunOnce,
		ChatID:  outcome.ChatID,
	})
	slog.Info("scheduled prompt completed", "id", job.ID, "chat_id", outcome.ChatID)
	return outcome
}

// run performs the fallible middle of an attempt: model resolution, the
// repair pipeline, and transcript persistence.
func (r *Runner) run(ctx context.Context, job store.ScheduledJob, user *store.User) (RunOutcome, error) {
	modelID, err := r.resolveModel(job, user)
	if err != nil {
		return RunOutcome{}, err
	}

	toolIDs := job.ToolIDs
	if len(toolIDs) == 0 {
		if inherited := r.registry.DefaultToolIDs(modelID); len(inherited) > 0 {
			toolIDs = inherited
			slog.Info("using model's configured tools", "id", job.ID, "tools", toolIDs)
		}
	}
	actionTools := filterActionTools(toolIDs)

	req := &modelclient.Request{
		Model:    modelID,
		Messages: buildMessages(job, actionTools),
		ToolIDs:  toolIDs,
	}

	result, err := r.pipeline.Run(ctx, job.UserID, req, actionTools, job.FunctionCallingMode)
	if err != nil {
		return RunOutcome{}, err
	}

	now := time.Now().Unix()
	chatMessages := buildChatMessages(job, result, now)

	chatID, err := r.persistTranscript(ctx, job, modelID, actionTools, chatMessages)
	if err != nil {
		return RunOutcome{}, err
	}

	return RunOutcome{
		Success:         true,
		ChatID:          chatID,
		ResponsePreview: preview(result.Content),
	}, nil
}

// resolveModel picks the effective model: the job's model when known,
// else the first of the user's default models present in the registry,
// else any registry entry.
func (r *Runner) resolveModel(job store.ScheduledJob, user *store.User) (string, error) {
	if r.registry.Has(job.ModelID) {
		return job.ModelID, nil
	}
	slog.Warn("model not found, looking for fallback", "id", job.ID, "model", job.ModelID)

	for _, id := range user.Settings.UI.Models {
		if r.registry.Has(id) {
			slog.Info("using user's default model", "id", job.ID, "model", id)
			return id, nil
		}
	}
	if m, ok := r.registry.First(); ok {
		slog.Info("using first available model", "id", job.ID, "model", m.ID)
		return m.ID, nil
	}
	return "", fmt.Errorf("model %s not found and no fallback available", job.ModelID)
}

// fail records an error attempt: status update, schedule advancement (or
// disable for one-shots), and an error notification. When the user record
// is missing the notification is addressed by the job's user ID alone.
func (r *Runner) fail(ctx context.Context, span trace.Span, job store.ScheduledJob, user *store.User, runErr error) RunOutcome {
	slog.Error("scheduled prompt failed", "id", job.ID, "error", runErr)
	span.RecordError(runErr)
	span.SetStatus(codes.Error, runErr.Error())

	r.advance(ctx, job, store.ExecutionUpdate{
		Status: store.StatusError,
		Error:  runErr.Error(),
	})

	// Without a user record the in-app channel can still address the
	// owner by ID; push settings are simply absent.
	if user == nil {
		user = &store.User{ID: job.UserID}
	}
	r.notifier.Notify(ctx, user, notify.Outcome{
		JobID:   job.ID,
		JobName: job.Name,
		Success: false,
		RunOnce: job.RunOnce,
		Error:   runErr.Error(),
	})
	return RunOutcome{Error: runErr.Error()}
}

// advance applies the post-run state transition: one-shot jobs get a
// cleared next_run_at and are disabled regardless of outcome; recurring
// jobs advance to the next cron instant (failures do not pause the
// schedule).
func (r *Runner) advance(ctx context.Context, job store.ScheduledJob, upd store.ExecutionUpdate) {
	if job.RunOnce {
		upd.NextRunAt = nil
		if err := r.jobs.UpdateExecution(ctx, job.ID, upd); err != nil {
			slog.Error("update execution status failed", "id", job.ID, "error", err)
		}
		if err := r.jobs.SetEnabled(ctx, job.ID, false); err != nil {
			slog.Error("disable one-shot prompt failed", "id", job.ID, "error", err)
		}
		slog.Info("one-off prompt completed and disabled", "id", job.ID)
		return
	}

	next, err := r.evaluator.Next(job.CronExpression, job.Timezone, time.Now())
	if err != nil {
		slog.Error("compute next run failed", "id", job.ID, "expr", job.CronExpression, "error", err)
	} else {
		nextUnix := next.Unix()
		upd.NextRunAt = &nextUnix
	}
	if err := r.jobs.UpdateExecution(ctx, job.ID, upd); err != nil {
		slog.Error("update execution status failed", "id", job.ID, "error", err)
	}
}

// persistTranscript creates a new chat or appends to the linked one. A
// linked chat that was deleted falls back to a fresh chat with the same
// rules.
func (r *Runner) persistTranscript(ctx context.Context, job store.ScheduledJob, modelID string, actionTools []string, msgs []store.ChatMessage) (string, error) {
	if !job.CreateNewChat && job.ChatID != "" {
		_, err := r.chats.Get(ctx, job.ChatID)
		if err == nil {
			if err := r.chats.AppendMessages(ctx, job.ChatID, msgs); err != nil {
				return "", fmt.Errorf("append to chat %s: %w", job.ChatID, err)
			}
			return job.ChatID, nil
		}
		if !store.IsNotFound(err) {
			return "", fmt.Errorf("load chat %s: %w", job.ChatID, err)
		}
		slog.Warn("linked chat deleted, creating new one", "id", job.ID, "chat_id", job.ChatID)
	}

	chat := &store.Chat{
		UserID:   job.UserID,
		Title:    chatTitlePrefix + chatTitle(job),
		Messages: msgs,
		Models:   []string{modelID},
	}
	if len(actionTools) > 0 {
		chat.ToolIDs = actionTools
	}
	created, err := r.chats.Insert(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}
	return created.ID, nil
}

// --- pure helpers ---

// filterActionTools drops any tool whose ID contains the self-scheduling
// marker, case-insensitive.
func filterActionTools(toolIDs []string) []string {
	var action []string
	for _, t := range toolIDs {
		if strings.Contains(strings.ToLower(t), selfSchedulingMarker) {
			continue
		}
		action = append(action, t)
	}
	return action
}

// buildMessages assembles the system and user turns, augmenting the
// system message with the automation instruction.
func buildMessages(job store.ScheduledJob, actionTools []string) []modelclient.Message {
	system := job.SystemPrompt
	if system == "" {
		system = "You are a helpful assistant."
	}
	system += automationInstruction(actionTools)

	return []modelclient.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: job.Prompt},
	}
}

// automationInstruction tells the model this is an automated run and
// which tools it may use. With notes tools present it adds the get_note
// follow-through directive.
func automationInstruction(actionTools []string) string {
	var instruction string
	if len(actionTools) > 0 {
		instruction = "\n\nIMPORTANT: This is an automated scheduled reminder. You have access to these tools: " +
			strings.Join(actionTools, ", ") +
			". Use them to help the user with their request. For example, if this is about a todo list, use the notes_manager tool to fetch the actual current data."
	} else {
		instruction = "\n\nIMPORTANT: This is an automated scheduled reminder. Respond helpfully to the user's request."
	}

	for _, t := range actionTools {
		if strings.Contains(strings.ToLower(t), "notes_manager") {
			instruction += " After any list_my_notes or search_notes call you MUST call get_note with the exact note_id UUID so the actual note content is fetched before you answer."
			break
		}
	}
	return instruction
}

// buildChatMessages assembles the persisted user+assistant pair. Both
// share one timestamp; the system prompt stays hidden context. The
// assistant message carries sources, a citations mirror, and note
// attachments extracted from get_note sources.
func buildChatMessages(job store.ScheduledJob, result *repair.Result, timestamp int64) []store.ChatMessage {
	assistant := store.ChatMessage{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Content:   result.Content,
		Timestamp: timestamp,
		Models:    []string{job.ModelID},
	}
	if len(result.Sources) > 0 {
		assistant.Sources = result.Sources
		assistant.Citations = result.Sources
	}
	if attachments := repair.ExtractNoteAttachments(result.Sources); len(attachments) > 0 {
		assistant.NoteAttachments = attachments
	}

	return []store.ChatMessage{
		{
			ID:        uuid.NewString(),
			Role:      "user",
			Content:   job.Prompt,
			Timestamp: timestamp,
			Models:    []string{job.ModelID},
		},
		assistant,
	}
}

// chatTitle is the job name, or the truncated prompt when unnamed.
func chatTitle(job store.ScheduledJob) string {
	if job.Name != "" {
		return job.Name
	}
	if len(job.Prompt) > titlePromptLen {
		return job.Prompt[:titlePromptLen] + "..."
	}
	return job.Prompt
}

func preview(content string) string {
	if len(content) > previewLen {
		return content[:previewLen] + "..."
	}
	return content
}
