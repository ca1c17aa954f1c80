// Package realtime is the best-effort fan-out client against the
// real-time publication service (channel publish + per-user
// unsubscribe), grounded on the same retry/backoff contract the
// original client used: up to 20 retries, 0.5s-10s exponential
// backoff, 30s per-attempt timeout.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries     = 20
	baseBackoff    = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	attemptTimeout = 30 * time.Second
)

// Client is a thin HTTP JSON client over the realtime service's
// /publish and /batch endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
}

// New builds a Client. baseURL is the realtime service's root (e.g.
// "http://localhost:8000"); apiKey is sent as X-API-Key on every call.
func New(baseURL, apiKey string, log *logrus.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = baseBackoff
	rc.RetryWaitMax = maxBackoff
	rc.HTTPClient.Timeout = attemptTimeout
	rc.Logger = newRetryableLogAdapter(log)
	return &Client{baseURL: baseURL, apiKey: apiKey, http: rc}
}

// Publish publishes data to channel.
func (c *Client) Publish(ctx context.Context, channel string, data any) error {
	return c.post(ctx, "/publish", PublishCommand{Channel: channel, Data: data})
}

// Command is one entry of a Batch call: either a channel Publish or a
// per-user channel Unsubscribe.
type Command struct {
	Publish     *PublishCommand     `json:"publish,omitempty"`
	Unsubscribe *UnsubscribeCommand `json:"unsubscribe,omitempty"`
}

// PublishCommand publishes data to a channel.
type PublishCommand struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}

// UnsubscribeCommand force-unsubscribes a user from a channel.
type UnsubscribeCommand struct {
	User    string `json:"user"`
	Channel string `json:"channel"`
}

type batchRequest struct {
	Commands []Command `json:"commands"`
	Parallel bool      `json:"parallel"`
}

// Batch issues every command in one request. parallel mirrors the
// realtime service's own fan-out parallelism flag; it does not change
// ordering guarantees this client makes (there are none across
// commands in a batch).
func (c *Client) Batch(ctx context.Context, commands []Command, parallel bool) error {
	if len(commands) == 0 {
		return nil
	}
	return c.post(ctx, "/batch", batchRequest{Commands: commands, Parallel: parallel})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("realtime: marshal %s request: %w", path, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("realtime: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("realtime: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("realtime: %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}
