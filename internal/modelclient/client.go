// Package modelclient issues non-streaming chat-completion requests
// against the backend HTTP endpoint, authenticated with a short-lived
// bearer token minted for the job's owner.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/promptsched/internal/auth"
)

// completionTimeout is the total per-call deadline.
const completionTimeout = 300 * time.Second

// maxErrorBody bounds how much of an error response body is carried into
// the error text.
const maxErrorBody = 4096

// Client posts completion requests to {base}/api/chat/completions.
type Client struct {
	baseURL string
	minter  *auth.Minter
	hc      *http.Client
}

// New creates a Client for the given base URL (scheme://host[:port], no
// trailing slash required).
func New(baseURL string, minter *auth.Minter) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		minter:  minter,
		hc:      &http.Client{Timeout: completionTimeout},
	}
}

// Complete issues a non-streaming completion request on behalf of userID.
// Any non-2xx response is an error carrying the response body.
func (c *Client) Complete(ctx context.Context, userID string, req *Request) (*Response, error) {
	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	token, err := c.minter.Mint(userID)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}

	url := c.baseURL + "/api/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(errBody))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	slog.Debug("chat completion done",
		"model", req.Model,
		"tools", len(req.ToolIDs),
		"duration_ms", time.Since(start).Milliseconds())
	return &out, nil
}
