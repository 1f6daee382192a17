package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/promptsched/internal/auth"
)

func newTestMinter() *auth.Minter {
	return auth.NewMinter("test-secret", time.Minute)
}

func TestComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	minter := newTestMinter()
	c := New(srv.URL, minter)
	resp, err := c.Complete(context.Background(), "user-1", &Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
		ToolIDs:  []string{"notes_manager"},
		Params:   &Params{FunctionCalling: "default"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotPath != "/api/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	token := strings.TrimPrefix(gotAuth, "Bearer ")
	if token == gotAuth || token == "" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
	if userID, err := minter.Verify(token); err != nil || userID != "user-1" {
		t.Errorf("token userID = %q err = %v, want user-1", userID, err)
	}
	if gotBody["stream"] != false {
		t.Errorf("stream = %v, want false", gotBody["stream"])
	}
	if params, ok := gotBody["params"].(map[string]any); !ok || params["function_calling"] != "default" {
		t.Errorf("params = %v", gotBody["params"])
	}
	if got := resp.AssistantContent(); got != "hello" {
		t.Errorf("content = %q, want hello", got)
	}
}

func TestComplete_Non2xxCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend exploded"))
	}))
	defer srv.Close()

	c := New(srv.URL, newTestMinter())
	_, err := c.Complete(context.Background(), "user-1", &Request{Model: "m"})
	if err == nil {
		t.Fatal("want error on 500")
	}
	if !strings.Contains(err.Error(), "API error 500") || !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestAssistantContent_Fallbacks(t *testing.T) {
	r := &Response{Choices: []Choice{{Message: ResponseMessage{ReasoningContent: "thought"}}}}
	if got := r.AssistantContent(); got != "thought" {
		t.Errorf("reasoning fallback = %q", got)
	}

	empty := &Response{}
	if got := empty.AssistantContent(); got != "" {
		t.Errorf("empty choices = %q, want empty", got)
	}
}

func TestRequestClone(t *testing.T) {
	req := &Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "hi"}},
		ToolIDs:  []string{"a"},
		Params:   &Params{FunctionCalling: "native"},
	}
	c := req.Clone()
	c.Messages = append(c.Messages, Message{Role: "user", Content: "more"})
	c.Params.FunctionCalling = "default"
	c.ToolIDs[0] = "b"

	if len(req.Messages) != 1 {
		t.Error("clone shares messages slice")
	}
	if req.Params.FunctionCalling != "native" {
		t.Error("clone shares params")
	}
	if req.ToolIDs[0] != "a" {
		t.Error("clone shares tool IDs")
	}
}
