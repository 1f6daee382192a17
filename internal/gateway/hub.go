// Package gateway hosts the in-app notification socket: a WebSocket hub
// keyed by session ID with a per-user session registry. The scheduler's
// notifier emits to session IDs resolved from the pool; the hub is
// read-only from the notifier's perspective.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/promptsched/internal/auth"
)

// envelope is the wire frame sent to socket clients.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks connected clients and their owning users. It implements the
// notifier's Emitter and SessionPool contracts.
type Hub struct {
	minter *auth.Minter

	mu       sync.RWMutex
	clients  map[string]*client  // session ID → client
	sessions map[string][]string // user ID → session IDs

	// Optional shared registry for multi-process deployments.
	shared *RedisSessionPool

	upgrader websocket.Upgrader
}

// NewHub creates a Hub. minter verifies connection tokens; shared may be
// nil to keep the registry process-local.
func NewHub(minter *auth.Minter, shared *RedisSessionPool) *Hub {
	return &Hub{
		minter:   minter,
		clients:  make(map[string]*client),
		sessions: make(map[string][]string),
		shared:   shared,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeHTTP upgrades a connection and registers it under the user ID
// carried by the bearer token in the "token" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.minter.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.NewString(), userID, conn)
	h.register(r.Context(), c)
	defer h.unregister(context.Background(), c)
	c.run()
}

func (h *Hub) register(ctx context.Context, c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.sessions[c.userID] = append(h.sessions[c.userID], c.id)
	h.mu.Unlock()

	if h.shared != nil {
		if err := h.shared.Add(ctx, c.userID, c.id); err != nil {
			slog.Warn("shared session pool add failed", "error", err)
		}
	}
	slog.Debug("socket session opened", "user", c.userID, "session", c.id)
}

func (h *Hub) unregister(ctx context.Context, c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	ids := h.sessions[c.userID]
	for i, id := range ids {
		if id == c.id {
			h.sessions[c.userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(h.sessions[c.userID]) == 0 {
		delete(h.sessions, c.userID)
	}
	h.mu.Unlock()

	if h.shared != nil {
		if err := h.shared.Remove(ctx, c.userID, c.id); err != nil {
			slog.Warn("shared session pool remove failed", "error", err)
		}
	}
	c.close()
	slog.Debug("socket session closed", "user", c.userID, "session", c.id)
}

// Sessions returns the user's open session IDs. With a shared registry
// configured the union across processes is returned; local sessions win
// on ordering.
func (h *Hub) Sessions(ctx context.Context, userID string) []string {
	h.mu.RLock()
	local := append([]string(nil), h.sessions[userID]...)
	h.mu.RUnlock()

	if h.shared == nil {
		return local
	}
	seen := make(map[string]bool, len(local))
	for _, id := range local {
		seen[id] = true
	}
	for _, id := range h.shared.Sessions(ctx, userID) {
		if !seen[id] {
			local = append(local, id)
		}
	}
	return local
}

// Emit delivers an event to a single session. Unknown sessions (remote or
// already closed) are skipped; a full send buffer drops the frame rather
// than blocking the notifier.
func (h *Hub) Emit(event string, payload any, sessionID string) {
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		slog.Error("marshal socket event failed", "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("socket send buffer full, dropping event", "session", sessionID)
	}
}
