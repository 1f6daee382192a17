// Package store defines the persistence contracts and shared types for
// scheduled prompts, chats, and users. Concrete backends live in
// store/pg (Postgres) and store/sqlite (single-node).
package store

// Function-calling modes accepted by the chat-completion backend.
const (
	FunctionCallingDefault = "default"
	FunctionCallingNative  = "native"
	FunctionCallingAuto    = "auto"
)

// Run statuses recorded on a job after each attempt.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusRunning = "running"
)

// ScheduledJob is a persisted definition of a recurring or one-shot prompt.
// The engine reads identity/schedule/payload and mutates only the
// execution-state fields.
type ScheduledJob struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	// Schedule
	CronExpression string `json:"cron_expression"` // 5-field cron, e.g. "0 9 * * 1-5"
	Timezone       string `json:"timezone"`        // IANA name, default UTC
	Enabled        bool   `json:"enabled"`
	RunOnce        bool   `json:"run_once"` // disable after first completion

	// Payload
	ModelID             string   `json:"model_id"`
	SystemPrompt        string   `json:"system_prompt,omitempty"`
	Prompt              string   `json:"prompt"`
	ToolIDs             []string `json:"tool_ids,omitempty"`
	FunctionCallingMode string   `json:"function_calling_mode"` // default | native | auto

	// Chat linkage
	ChatID        string `json:"chat_id,omitempty"`
	CreateNewChat bool   `json:"create_new_chat"`

	// Execution state (engine-owned)
	LastRunAt  *int64 `json:"last_run_at,omitempty"`
	NextRunAt  *int64 `json:"next_run_at,omitempty"`
	LastStatus string `json:"last_status,omitempty"` // success | error | running
	LastError  string `json:"last_error,omitempty"`
	RunCount   int    `json:"run_count"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// ChatMessage is a single transcript entry. Assistant messages may carry
// sources, a citations mirror, and note attachments.
type ChatMessage struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"` // system | user | assistant
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"`
	Models    []string `json:"models,omitempty"`

	Sources         []Source         `json:"sources,omitempty"`
	Citations       []Source         `json:"citations,omitempty"`
	NoteAttachments []NoteAttachment `json:"note_attachments,omitempty"`
}

// Chat is an ordered transcript owned by a user.
type Chat struct {
	ID       string        `json:"id"`
	UserID   string        `json:"user_id"`
	Title    string        `json:"title"`
	Messages []ChatMessage `json:"messages"`
	Models   []string      `json:"models,omitempty"`
	ToolIDs  []string      `json:"tool_ids,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Source is a retrieval/tool source attached to a model response. Names may
// appear bare ("get_note") or namespaced ("notes_manager/get_note").
type Source struct {
	Source   SourceRef        `json:"source"`
	Document []string         `json:"document,omitempty"`
	Metadata []SourceMetadata `json:"metadata,omitempty"`
}

// SourceRef identifies the tool or document a source came from.
type SourceRef struct {
	Name string `json:"name"`
}

// SourceMetadata is the per-document metadata entry, index-aligned with
// the Document slice.
type SourceMetadata struct {
	Source     string            `json:"source,omitempty"`
	Parameters *SourceParameters `json:"parameters,omitempty"`
}

// SourceParameters carries the tool-call parameters recorded for a source.
type SourceParameters struct {
	NoteID string `json:"note_id,omitempty"`
}

// NoteAttachment pairs a fetched note's content with its ID so the UI can
// render it separately from the visible assistant text.
type NoteAttachment struct {
	NoteID  string `json:"note_id,omitempty"`
	Content string `json:"content"`
}

// User is the owner record the engine loads before each run. Settings is
// the parsed per-user settings object.
type User struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Email    string       `json:"email,omitempty"`
	Settings UserSettings `json:"settings"`
}

// UserSettings mirrors the recognized subset of the per-user settings JSON.
type UserSettings struct {
	UI UISettings `json:"ui"`
}

// UISettings holds the user's default-model list and notification options.
type UISettings struct {
	Models        []string             `json:"models,omitempty"`
	Notifications NotificationSettings `json:"notifications"`
}

// NotificationSettings groups per-channel notification options.
type NotificationSettings struct {
	Ntfy NtfySettings `json:"ntfy"`
}

// NtfySettings configures the user's external push endpoint.
type NtfySettings struct {
	Enabled   bool   `json:"enabled"`
	ServerURL string `json:"server_url,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Token     string `json:"token,omitempty"`
}
