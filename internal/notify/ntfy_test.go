package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

func TestNtfySend_SuccessHeaders(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c := NewNtfyClient()
	err := c.Send(context.Background(), store.NtfySettings{
		Enabled:   true,
		ServerURL: srv.URL + "/",
		Topic:     "my-topic",
		Token:     "secret-token",
	}, Payload{
		Status:              store.StatusSuccess,
		Title:               "Scheduled prompt completed",
		Message:             "'daily digest' ran successfully",
		ChatURL:             "https://owui.example.com/c/chat-123",
		ScheduledPromptsURL: "https://owui.example.com/workspace/scheduled-prompts",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/my-topic" {
		t.Errorf("path = %q, want /my-topic", gotPath)
	}
	if got := gotHeaders.Get("Title"); got != "Scheduled prompt completed" {
		t.Errorf("Title = %q", got)
	}
	if got := gotHeaders.Get("Tags"); got != "calendar" {
		t.Errorf("Tags = %q, want calendar", got)
	}
	if got := gotHeaders.Get("Priority"); got != "default" {
		t.Errorf("Priority = %q, want default", got)
	}
	// Click prefers the chat link over the workspace page.
	if got := gotHeaders.Get("Click"); got != "https://owui.example.com/c/chat-123" {
		t.Errorf("Click = %q", got)
	}
	actions := gotHeaders.Get("Actions")
	if !strings.Contains(actions, "Open Chat") || !strings.Contains(actions, "Scheduled Prompts") {
		t.Errorf("Actions = %q, want both deep links", actions)
	}
	if got := gotHeaders.Get("Authorization"); got != "Bearer secret-token" {
		t.Errorf("Authorization = %q", got)
	}

	body := string(gotBody)
	if !strings.Contains(body, "'daily digest' ran successfully") {
		t.Errorf("body = %q", body)
	}
	// Deep links live only in headers.
	if strings.Contains(body, "https://owui.example.com") {
		t.Errorf("body must not embed deep links: %q", body)
	}
}

func TestNtfySend_ErrorHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
	}))
	defer srv.Close()

	c := NewNtfyClient()
	err := c.Send(context.Background(), store.NtfySettings{
		Enabled:   true,
		ServerURL: srv.URL,
		Topic:     "t",
	}, Payload{
		Status:              store.StatusError,
		Title:               "Scheduled prompt failed",
		Message:             "'x' failed: boom",
		ScheduledPromptsURL: "https://owui.example.com/workspace/scheduled-prompts",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := gotHeaders.Get("Tags"); got != "warning" {
		t.Errorf("Tags = %q, want warning", got)
	}
	if got := gotHeaders.Get("Priority"); got != "high" {
		t.Errorf("Priority = %q, want high", got)
	}
	// No chat link: Click falls back to the workspace page.
	if got := gotHeaders.Get("Click"); got != "https://owui.example.com/workspace/scheduled-prompts" {
		t.Errorf("Click = %q", got)
	}
	if got := gotHeaders.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want unset without token", got)
	}
}

func TestNtfySend_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewNtfyClient()
	err := c.Send(context.Background(), store.NtfySettings{ServerURL: srv.URL, Topic: "t"}, Payload{Message: "m"})
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Errorf("err = %v, want status 403", err)
	}
}

func TestPushLimiter(t *testing.T) {
	p := newPushLimiter()
	allowed := 0
	for i := 0; i < 20; i++ {
		if p.allow("u1") {
			allowed++
		}
	}
	if allowed != pushBurst {
		t.Errorf("allowed = %d, want burst of %d", allowed, pushBurst)
	}
	// Another user has an independent bucket.
	if !p.allow("u2") {
		t.Error("u2 should not share u1's bucket")
	}
}
