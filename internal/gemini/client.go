// Package gemini is a minimal client for the Gemini generateContent API
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

// Client calls generateContent and streamGenerateContent
type Client struct {
	apiKey       string
	baseURL      string
	apiVersion   string
	defaultModel string
	maxTokens    int
	maxRetries   int
	httpClient   *http.Client
	newBackOff   func() backoff.BackOff
}

// NewClient creates a client from config
func NewClient(cfg config.GeminiConfig) *Client {
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
	if c.baseURL == "" {
		c.baseURL = "https://generativelanguage.googleapis.com"
	}
	if c.apiVersion == "" {
		c.apiVersion = "v1beta"
	}
	if c.defaultModel == "" {
		c.defaultModel = "gemini-2.0-flash"
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 4096
	}
	return c
}

// HTTPClient exposes the underlying client so transports can be swapped
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *Client) prepare(req *ChatRequest) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.GenerationConfig == nil {
		req.GenerationConfig = &GenerationConfig{}
	}
	if req.GenerationConfig.MaxOutputTokens <= 0 {
		req.GenerationConfig.MaxOutputTokens = c.maxTokens
	}
}

func (c *Client) endpoint(model, method string, query url.Values) string {
	query.Set("key", c.apiKey)
	return fmt.Sprintf("%s/%s/models/%s:%s?%s", c.baseURL, c.apiVersion, model, method, query.Encode())
}

// GenerateChat calls generateContent. 429 and 5xx responses are retried.
func (c *Client) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	c.prepare(&req)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	target := c.endpoint(req.Model, "generateContent", url.Values{})
	loggy.Debug("sending gemini request", "model", req.Model, "contents", len(req.Contents))

	var out ChatResponse
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			apiErr := parseError(resp.StatusCode, data)
			loggy.Warn("gemini API error response", "status", resp.StatusCode, "error", apiErr)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshalling response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(max(c.maxRetries, 0))), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("generating chat completion: %w", err)
	}
	return &out, nil
}

// GenerateChatStream calls streamGenerateContent with alt=sse and relays
// each event's text. The channel closes after Done, an error, or ctx cancellation.
func (c *Client) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	c.prepare(&req)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	target := c.endpoint(req.Model, "streamGenerateContent", url.Values{"alt": {"sse"}})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
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

		const maxScanTokenSize = 1024 * 1024
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var ev ChatResponse
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev); err != nil {
				loggy.Debug("skipping undecodable gemini event", "error", err)
				continue
			}
			if ev.Error != nil {
				send(StreamChunk{Model: req.Model, Err: &APIError{StatusCode: ev.Error.Code, Detail: ev.Error}})
				return
			}
			if text := ev.Text(); text != "" {
				if !send(StreamChunk{Model: req.Model, Text: text}) {
					return
				}
			}
			if reason := ev.FinishReason(); reason != "" {
				send(StreamChunk{Model: req.Model, Done: true})
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			send(StreamChunk{Model: req.Model, Err: fmt.Errorf("reading stream: %w", err)})
			return
		}
		send(StreamChunk{Model: req.Model, Done: true})
	}()
	return out, nil
}

func parseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Detail == nil {
		apiErr.Detail = &ErrorDetails{Code: status, Message: fmt.Sprintf("HTTP %d: %s", status, strings.TrimSpace(string(body)))}
	}
	return apiErr
}
