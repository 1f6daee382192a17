package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/promptsched/internal/store"
)

// pushTimeout is the per-request deadline for push delivery.
const pushTimeout = 10 * time.Second

// NtfyClient posts notifications to an ntfy-compatible server. Deep links
// travel only in the Click and Actions headers, never in the body.
type NtfyClient struct {
	hc *http.Client
}

// NewNtfyClient creates a push client.
func NewNtfyClient() *NtfyClient {
	return &NtfyClient{hc: &http.Client{Timeout: pushTimeout}}
}

// Send posts one notification to <server>/<topic>. A non-2xx response is
// returned as an error for the caller to log; it is never retried.
func (c *NtfyClient) Send(ctx context.Context, cfg store.NtfySettings, payload Payload) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/" + cfg.Topic
	body := truncateMessage(payload.Message, maxPushMessageLen)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}

	req.Header.Set("Title", payload.Title)
	if payload.Status == store.StatusSuccess {
		req.Header.Set("Tags", "calendar")
		req.Header.Set("Priority", "default")
	} else {
		req.Header.Set("Tags", "warning")
		req.Header.Set("Priority", "high")
	}

	// Click prefers the chat itself; fall back to the workspace page.
	if payload.ChatURL != "" {
		req.Header.Set("Click", payload.ChatURL)
	} else if payload.ScheduledPromptsURL != "" {
		req.Header.Set("Click", payload.ScheduledPromptsURL)
	}

	if actions := buildActionsHeader(payload); actions != "" {
		req.Header.Set("Actions", actions)
	}
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push to %s: status %d: %s", url, resp.StatusCode, string(errBody))
	}
	return nil
}

// buildActionsHeader enumerates view actions for the deep links present.
func buildActionsHeader(payload Payload) string {
	var actions []string
	if payload.ChatURL != "" {
		actions = append(actions, "view, Open Chat, "+payload.ChatURL)
	}
	if payload.ScheduledPromptsURL != "" {
		actions = append(actions, "view, Scheduled Prompts, "+payload.ScheduledPromptsURL)
	}
	return strings.Join(actions, "; ")
}
