// Package claude is a minimal client for the Anthropic messages API
package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

// Client calls the messages endpoint with retries
type Client struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	defaultModel string
	maxTokens    int
	maxRetries   int
	httpClient   *http.Client
	// newBackOff is replaceable so tests do not sleep
	newBackOff func() backoff.BackOff
}

// NewClient creates a client from config, applying defaults for blank fields
func NewClient(cfg config.ClaudeConfig) *Client {
	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiVersion:   cfg.APIVersion,
		defaultModel: cfg.Model,
		maxTokens:    cfg.MaxTokens,
		maxRetries:   cfg.MaxRetries,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		newBackOff:   func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	if c.apiVersion == "" {
		c.apiVersion = "2023-06-01"
	}
	if c.defaultModel == "" {
		c.defaultModel = "claude-3-7-sonnet-20250219"
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 4096
	}
	return c
}

func (c *Client) prepare(req *ChatRequest) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.maxTokens
	}
}

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.apiVersion)
	return req, nil
}

// GenerateChat sends a non-streaming request. Network errors, 429 and 5xx
// responses are retried with exponential backoff; other statuses fail at once.
func (c *Client) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	c.prepare(&req)
	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	loggy.Debug("sending claude request", "model", req.Model, "messages", len(req.Messages))

	var out ChatResponse
	operation := func() error {
		httpReq, err := c.newRequest(ctx, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := parseError(resp.StatusCode, data)
			if retryable(resp.StatusCode) {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(max(c.maxRetries, 0))), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateChatStream sends a streaming request and relays text deltas.
// The channel closes after the final chunk, an error chunk, or ctx cancellation.
func (c *Client) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	c.prepare(&req)
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, data)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		send := func(chunk StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- chunk:
				return true
			}
		}

		model := req.Model
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var ev StreamEvent
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
				loggy.Debug("skipping undecodable stream event", "error", err)
				continue
			}

			switch ev.Type {
			case "message_start":
				if ev.Message.Model != "" {
					model = ev.Message.Model
				}
			case "content_block_delta":
				if ev.Delta.Text != "" && !send(StreamChunk{Model: model, Text: ev.Delta.Text}) {
					return
				}
			case "message_stop":
				send(StreamChunk{Model: model, Done: true})
				return
			case "error":
				apiErr := &APIError{StatusCode: http.StatusOK}
				if ev.Error != nil {
					apiErr.Details = *ev.Error
				}
				send(StreamChunk{Model: model, Err: apiErr})
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			send(StreamChunk{Model: model, Err: fmt.Errorf("reading stream: %w", err)})
			return
		}
		// stream ended without message_stop
		send(StreamChunk{Model: model, Done: true})
	}()
	return out, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func parseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Details.Message == "" {
		apiErr.Details = ErrorDetails{Type: "http_error", Message: strings.TrimSpace(string(body))}
	}
	return apiErr
}
