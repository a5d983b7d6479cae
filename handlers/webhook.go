package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"retryq/services"
)

// WebhookPayload is the contract of the built-in "webhook" kind: deliver an
// HTTP request to an external endpoint, with the queue owning retries.
type WebhookPayload struct {
	Url     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// NewWebhookHandler returns a handler that posts the payload body to the
// payload URL. Any non-2xx response counts as a failed attempt.
func NewWebhookHandler(timeout time.Duration) services.Handler {
	client := &http.Client{Timeout: timeout}

	return func(payload []byte, ctx context.Context) error {
		var webhook WebhookPayload
		if err := json.Unmarshal(payload, &webhook); err != nil {
			return fmt.Errorf("invalid webhook payload: %w", err)
		}
		if webhook.Url == "" {
			return fmt.Errorf("webhook payload has no url")
		}

		method := webhook.Method
		if method == "" {
			method = http.MethodPost
		}

		req, err := http.NewRequestWithContext(ctx, method, webhook.Url, bytes.NewReader(webhook.Body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for name, value := range webhook.Headers {
			req.Header.Set(name, value)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("webhook delivery failed with status: %d", resp.StatusCode)
		}
		return nil
	}
}
