package notify

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

func TestLinkBuilder_Normalization(t *testing.T) {
	l := NewLinkBuilder("https://owui.example.com/")
	if l.Base() != "https://owui.example.com" {
		t.Errorf("Base = %q, want trailing slash stripped", l.Base())
	}
	if got := l.Build("workspace/scheduled-prompts"); got != "https://owui.example.com/workspace/scheduled-prompts" {
		t.Errorf("Build without leading slash = %q", got)
	}
	if got := l.Build("/c/abc"); got != "https://owui.example.com/c/abc" {
		t.Errorf("Build with leading slash = %q", got)
	}
}

func TestLinkBuilder_EmptyBase(t *testing.T) {
	l := NewLinkBuilder("")
	if got := l.Build("/c/abc"); got != "" {
		t.Errorf("Build = %q, want empty when no base configured", got)
	}
	if got := l.ChatURL("abc"); got != "" {
		t.Errorf("ChatURL = %q, want empty", got)
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := truncateMessage("short", 500); got != "short" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("word ", 200) // 1000 chars
	got := truncateMessage(long, 500)
	if len(got) > 504 {
		t.Errorf("len = %d, want <= 504", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("got %q, want ellipsis suffix", got)
	}
	// Whole words preserved: no trailing partial "wor".
	trimmed := strings.TrimSuffix(got, "...")
	if !strings.HasSuffix(trimmed, "word") {
		t.Errorf("truncation split a word: %q", trimmed)
	}
}

type fakePool struct {
	sessions map[string][]string
}

func (f *fakePool) Sessions(_ context.Context, userID string) []string {
	return f.sessions[userID]
}

type fakeEmitter struct {
	mu    sync.Mutex
	calls []struct {
		Event     string
		SessionID string
		Payload   Payload
	}
}

func (f *fakeEmitter) Emit(event string, payload any, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, struct {
		Event     string
		SessionID string
		Payload   Payload
	}{event, sessionID, payload.(Payload)})
}

func TestNotify_FansOutToAllSessions(t *testing.T) {
	pool := &fakePool{sessions: map[string][]string{"u1": {"s1", "s2", "s3"}}}
	emitter := &fakeEmitter{}
	n := New(pool, emitter, NewLinkBuilder("https://owui.example.com"), nil)

	n.Notify(context.Background(), &store.User{ID: "u1"}, Outcome{
		JobID:   "p1",
		JobName: "daily digest",
		Success: true,
		ChatID:  "chat-123",
	})

	if len(emitter.calls) != 3 {
		t.Fatalf("emits = %d, want one per session", len(emitter.calls))
	}
	p := emitter.calls[0].Payload
	if emitter.calls[0].Event != "notification" {
		t.Errorf("event = %q", emitter.calls[0].Event)
	}
	if p.Type != "scheduled_prompt" || p.Status != "success" {
		t.Errorf("payload = %+v", p)
	}
	if p.Message != "'daily digest' ran successfully" {
		t.Errorf("message = %q", p.Message)
	}
	if p.ChatURL != "https://owui.example.com/c/chat-123" {
		t.Errorf("chat_url = %q", p.ChatURL)
	}
	if p.ScheduledPromptsURL != "https://owui.example.com/workspace/scheduled-prompts" {
		t.Errorf("scheduled_prompts_url = %q", p.ScheduledPromptsURL)
	}
	if p.PromptID != "p1" {
		t.Errorf("prompt_id = %q", p.PromptID)
	}
}

func TestNotify_OfflineSkipsSilently(t *testing.T) {
	emitter := &fakeEmitter{}
	n := New(&fakePool{sessions: map[string][]string{}}, emitter, NewLinkBuilder(""), nil)

	n.Notify(context.Background(), &store.User{ID: "u1"}, Outcome{JobID: "p1", JobName: "x", Success: true})
	if len(emitter.calls) != 0 {
		t.Errorf("emits = %d, want 0 for offline user", len(emitter.calls))
	}
}

func TestNotify_RunOnceSuffix(t *testing.T) {
	n := New(nil, nil, NewLinkBuilder(""), nil)
	p := n.buildPayload(Outcome{JobID: "p1", JobName: "once", Success: true, RunOnce: true})
	if p.Message != "'once' ran successfully (one-off, now disabled)" {
		t.Errorf("message = %q", p.Message)
	}
}

func TestNotify_ErrorPayload(t *testing.T) {
	n := New(nil, nil, NewLinkBuilder(""), nil)
	p := n.buildPayload(Outcome{
		JobID:   "p1",
		JobName: "bad job",
		Success: false,
		Error:   strings.Repeat("e", 300),
	})
	if p.Status != "error" || p.Title != "Scheduled prompt failed" {
		t.Errorf("payload = %+v", p)
	}
	if !strings.HasPrefix(p.Message, "'bad job' failed: ") {
		t.Errorf("message = %q", p.Message)
	}
	if len(p.Message) > len("'bad job' failed: ")+maxErrorInNotification+3 {
		t.Errorf("error text not truncated, len = %d", len(p.Message))
	}
}
