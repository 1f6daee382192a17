package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/promptsched/internal/auth"
)

func dialHub(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForSessions(t *testing.T, hub *Hub, userID string, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ids := hub.Sessions(context.Background(), userID)
		if len(ids) == want {
			return ids
		}
		if time.Now().After(deadline) {
			t.Fatalf("sessions = %d, want %d", len(ids), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_RegisterEmitUnregister(t *testing.T) {
	minter := auth.NewMinter("test-secret", time.Minute)
	hub := NewHub(minter, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	token, err := minter.Mint("u1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	conn := dialHub(t, srv, token)
	defer conn.Close()

	ids := waitForSessions(t, hub, "u1", 1)

	hub.Emit("notification", map[string]string{"title": "hi"}, ids[0])

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.Event != "notification" || frame.Data["title"] != "hi" {
		t.Errorf("frame = %+v", frame)
	}

	conn.Close()
	waitForSessions(t, hub, "u1", 0)
}

func TestHub_MultipleSessionsPerUser(t *testing.T) {
	minter := auth.NewMinter("test-secret", time.Minute)
	hub := NewHub(minter, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	token, _ := minter.Mint("u1")
	c1 := dialHub(t, srv, token)
	defer c1.Close()
	c2 := dialHub(t, srv, token)
	defer c2.Close()

	waitForSessions(t, hub, "u1", 2)

	if got := hub.Sessions(context.Background(), "other"); len(got) != 0 {
		t.Errorf("other user's sessions = %v", got)
	}
}

func TestHub_RejectsBadToken(t *testing.T) {
	hub := NewHub(auth.NewMinter("test-secret", time.Minute), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial with bad token should fail")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Errorf("status = %v, want 401", resp)
	}
}

func TestHub_EmitUnknownSessionIsNoop(t *testing.T) {
	hub := NewHub(auth.NewMinter("s", time.Minute), nil)
	// Must not panic or block.
	hub.Emit("notification", "x", "missing-session")
}
