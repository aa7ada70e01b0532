package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient talks to the host's local HTTP API. It implements both
// SessionClient and Notifier.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates an HTTPClient against the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// InjectPrompt posts a prompt to the session's message endpoint.
func (c *HTTPClient) InjectPrompt(ctx context.Context, sessionID, text string) error {
	body, err := json.Marshal(map[string]any{
		"parts": []map[string]string{{"type": "text", "text": text}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal prompt: %w", err)
	}

	endpoint := fmt.Sprintf("%s/session/%s/message", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to inject prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("prompt injection returned status %d", resp.StatusCode)
	}
	return nil
}

// messagePart mirrors the host's message part JSON.
type messagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// message mirrors the host's message JSON.
type message struct {
	Role  string        `json:"role"`
	Parts []messagePart `json:"parts"`
}

// RecentMessages fetches the session's message list and returns the
// text of up to limit most recent assistant messages, newest last.
func (c *HTTPClient) RecentMessages(ctx context.Context, sessionID string, limit int) ([]string, error) {
	endpoint := fmt.Sprintf("%s/session/%s/message", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("message fetch returned status %d", resp.StatusCode)
	}

	var msgs []message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	var texts []string
	for _, m := range msgs {
		if m.Role != "assistant" {
			continue
		}
		var combined string
		for _, p := range m.Parts {
			if p.Type == "text" {
				combined += p.Text
			}
		}
		texts = append(texts, combined)
	}

	if limit > 0 && len(texts) > limit {
		texts = texts[len(texts)-limit:]
	}
	return texts, nil
}

// Toast posts a transient notification to the host UI. Failures are
// swallowed: a toast is never worth failing an iteration over.
func (c *HTTPClient) Toast(msg, variant string) {
	body, err := json.Marshal(map[string]string{
		"message": msg,
		"variant": variant,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/tui/show-toast", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
