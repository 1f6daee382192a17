package sqlite

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

func openTestDB(t *testing.T) *JobStore {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewJobStore(db)
}

func int64Ptr(v int64) *int64 { return &v }

func testJob(next int64) *store.ScheduledJob {
	return &store.ScheduledJob{
		UserID:              "u1",
		Name:                "daily digest",
		CronExpression:      "*/5 * * * *",
		Timezone:            "UTC",
		Enabled:             true,
		ModelID:             "gpt-4o",
		Prompt:              "hi",
		CreateNewChat:       true,
		FunctionCallingMode: store.FunctionCallingDefault,
		ToolIDs:             []string{"notes_manager"},
		NextRunAt:           int64Ptr(next),
	}
}

func TestJobStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	job := testJob(1000)
	if err := s.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Insert must assign an ID")
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "daily digest" || got.CronExpression != "*/5 * * * *" {
		t.Errorf("got %+v", got)
	}
	if len(got.ToolIDs) != 1 || got.ToolIDs[0] != "notes_manager" {
		t.Errorf("tool_ids = %v", got.ToolIDs)
	}
	if got.NextRunAt == nil || *got.NextRunAt != 1000 {
		t.Errorf("next_run_at = %v", got.NextRunAt)
	}
}

func TestJobStore_Due(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	early := testJob(100)
	late := testJob(200)
	future := testJob(10_000)
	disabled := testJob(100)
	disabled.Enabled = false
	noNext := testJob(0)
	noNext.NextRunAt = nil

	for _, j := range []*store.ScheduledJob{late, early, future, disabled, noNext} {
		if err := s.Insert(ctx, j); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	due, err := s.Due(ctx, 500)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d jobs, want 2", len(due))
	}
	// Ascending by next_run_at.
	if due[0].ID != early.ID || due[1].ID != late.ID {
		t.Errorf("due order = %s, %s", due[0].ID, due[1].ID)
	}
}

func TestJobStore_UpdateExecution(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	job := testJob(100)
	if err := s.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Success on a recurring job advances next_run_at and bumps run_count.
	if err := s.UpdateExecution(ctx, job.ID, store.ExecutionUpdate{
		Status:    store.StatusSuccess,
		ChatID:    "chat-1",
		NextRunAt: int64Ptr(5000),
	}); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastStatus != store.StatusSuccess || got.RunCount != 1 {
		t.Errorf("status=%q run_count=%d", got.LastStatus, got.RunCount)
	}
	if got.ChatID != "chat-1" {
		t.Errorf("chat_id = %q", got.ChatID)
	}
	if got.NextRunAt == nil || *got.NextRunAt != 5000 {
		t.Errorf("next_run_at = %v", got.NextRunAt)
	}
	if got.LastRunAt == nil {
		t.Error("last_run_at not stamped")
	}

	// One-shot completion clears next_run_at; run_count increments again.
	if err := s.UpdateExecution(ctx, job.ID, store.ExecutionUpdate{
		Status: store.StatusError,
		Error:  "boom",
	}); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}
	got, _ = s.Get(ctx, job.ID)
	if got.NextRunAt != nil {
		t.Errorf("next_run_at = %v, want cleared", got.NextRunAt)
	}
	if got.LastError != "boom" || got.RunCount != 2 {
		t.Errorf("last_error=%q run_count=%d", got.LastError, got.RunCount)
	}
	// Error without a chat keeps the previous chat ID.
	if got.ChatID != "chat-1" {
		t.Errorf("chat_id = %q, want untouched on error", got.ChatID)
	}
}

func TestJobStore_SetEnabled(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)

	job := testJob(100)
	if err := s.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.SetEnabled(ctx, job.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	due, err := s.Due(ctx, 500)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("disabled job still due: %v", due)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	s := openTestDB(t)
	_, err := s.Get(context.Background(), "missing")
	if !store.IsNotFound(err) {
		t.Errorf("err = %v, want NotFoundError", err)
	}
}

func TestChatStore_InsertGetAppend(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()
	s := NewChatStore(db)

	chat, err := s.Insert(ctx, &store.Chat{
		UserID: "u1",
		Title:  "[Scheduled] daily digest",
		Messages: []store.ChatMessage{
			{ID: "m1", Role: "user", Content: "hi", Timestamp: 100},
			{ID: "m2", Role: "assistant", Content: "hello", Timestamp: 100},
		},
		Models:  []string{"gpt-4o"},
		ToolIDs: []string{"notes_manager"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := s.AppendMessages(ctx, chat.ID, []store.ChatMessage{
		{ID: "m3", Role: "user", Content: "again", Timestamp: 200},
		{ID: "m4", Role: "assistant", Content: "sure", Timestamp: 200},
	}); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}

	got, err := s.Get(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(got.Messages))
	}
	if got.Messages[3].Content != "sure" {
		t.Errorf("last message = %+v", got.Messages[3])
	}
	if got.Title != "[Scheduled] daily digest" {
		t.Errorf("title = %q", got.Title)
	}

	if err := s.AppendMessages(ctx, "missing", nil); !store.IsNotFound(err) {
		t.Errorf("append to missing chat: err = %v, want NotFoundError", err)
	}
}

func TestUserStore_SettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()
	s := NewUserStore(db)

	user := &store.User{
		ID:   "u1",
		Name: "Dana",
		Settings: store.UserSettings{
			UI: store.UISettings{
				Models: []string{"gpt-4o"},
				Notifications: store.NotificationSettings{
					Ntfy: store.NtfySettings{Enabled: true, ServerURL: "https://ntfy.sh", Topic: "t"},
				},
			},
		},
	}
	if err := s.Upsert(ctx, user); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Settings.UI.Notifications.Ntfy.Enabled {
		t.Error("ntfy settings lost")
	}
	if len(got.Settings.UI.Models) != 1 || got.Settings.UI.Models[0] != "gpt-4o" {
		t.Errorf("models = %v", got.Settings.UI.Models)
	}
}
