// Package notify fans out per-run outcomes to the user's open socket
// sessions and, when configured, to an ntfy-compatible push endpoint.
// Delivery is at-least-once per channel; failures are logged and
// swallowed, never propagated to the scheduler.
package notify

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// Payload is the in-app notification emitted to each socket session.
type Payload struct {
	Type                string `json:"type"` // always "scheduled_prompt"
	Status              string `json:"status"`
	Title               string `json:"title"`
	Message             string `json:"message"`
	ChatID              string `json:"chat_id,omitempty"`
	ChatURL             string `json:"chat_url,omitempty"`
	ScheduledPromptsURL string `json:"scheduled_prompts_url,omitempty"`
	PromptID            string `json:"prompt_id"`
}

// Emitter delivers a payload to a single socket session.
type Emitter interface {
	Emit(event string, payload any, sessionID string)
}

// SessionPool resolves a user's currently-open socket session IDs.
type SessionPool interface {
	Sessions(ctx context.Context, userID string) []string
}

// Outcome describes one completed run for notification purposes.
type Outcome struct {
	JobID   string
	JobName string
	Success bool
	RunOnce bool
	ChatID  string
	Error   string
}

// Notifier fans an Outcome out to both channels.
type Notifier struct {
	pool    SessionPool
	emitter Emitter
	links   *LinkBuilder
	push    *NtfyClient
	limiter *pushLimiter
}

// New creates a Notifier. pool and emitter drive the in-app channel; push
// may be nil to disable external notifications entirely.
func New(pool SessionPool, emitter Emitter, links *LinkBuilder, push *NtfyClient) *Notifier {
	return &Notifier{
		pool:    pool,
		emitter: emitter,
		links:   links,
		push:    push,
		limiter: newPushLimiter(),
	}
}

// maxErrorInNotification clips error text carried in notifications.
const maxErrorInNotification = 200

// Notify builds the payload for an outcome and delivers it to every open
// session plus the user's push endpoint. Never returns an error.
func (n *Notifier) Notify(ctx context.Context, user *store.User, outcome Outcome) {
	payload := n.buildPayload(outcome)
	n.notifySessions(ctx, user.ID, payload)
	n.notifyPush(ctx, user, payload)
}

func (n *Notifier) buildPayload(outcome Outcome) Payload {
	p := Payload{
		Type:     "scheduled_prompt",
		PromptID: outcome.JobID,
		ChatID:   outcome.ChatID,
	}
	if outcome.Success {
		p.Status = store.StatusSuccess
		p.Title = "Scheduled prompt completed"
		p.Message = "'" + outcome.JobName + "' ran successfully"
		if outcome.RunOnce {
			p.Message += " (one-off, now disabled)"
		}
	} else {
		p.Status = store.StatusError
		p.Title = "Scheduled prompt failed"
		errText := outcome.Error
		if len(errText) > maxErrorInNotification {
			errText = errText[:maxErrorInNotification] + "..."
		}
		p.Message = "'" + outcome.JobName + "' failed: " + errText
	}
	if n.links != nil {
		p.ChatURL = n.links.ChatURL(outcome.ChatID)
		p.ScheduledPromptsURL = n.links.ScheduledPromptsURL()
	}
	return p
}

// notifySessions emits the payload to every open session so all of the
// user's clients receive it. No sessions means the user is offline; skip
// silently.
func (n *Notifier) notifySessions(ctx context.Context, userID string, payload Payload) {
	if n.pool == nil || n.emitter == nil {
		return
	}
	sessions := n.pool.Sessions(ctx, userID)
	if len(sessions) == 0 {
		slog.Debug("user offline, skipping in-app notification", "user", userID)
		return
	}
	for _, sessionID := range sessions {
		n.emitter.Emit("notification", payload, sessionID)
	}
	slog.Debug("in-app notification sent", "user", userID, "sessions", len(sessions), "title", payload.Title)
}

func (n *Notifier) notifyPush(ctx context.Context, user *store.User, payload Payload) {
	if n.push == nil {
		return
	}
	ntfy := user.Settings.UI.Notifications.Ntfy
	if !ntfy.Enabled || ntfy.ServerURL == "" || ntfy.Topic == "" {
		return
	}
	if !n.limiter.allow(user.ID) {
		slog.Warn("push notification rate limited", "user", user.ID)
		return
	}
	if err := n.push.Send(ctx, ntfy, payload); err != nil {
		slog.Warn("push notification failed", "user", user.ID, "error", err)
	}
}
