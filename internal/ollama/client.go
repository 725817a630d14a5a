// Package ollama is a minimal client for the Ollama HTTP API
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

// APIError is returned for non-200 responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama: unexpected status code %d: %s", e.StatusCode, e.Body)
}

// Client talks to one Ollama endpoint
type Client struct {
	config     config.OllamaConfig
	httpClient *http.Client
}

// NewClient creates a client with a pooled transport
func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		},
	}
}

// ListModels lists locally available models
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var resp ListModelsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return resp.Models, nil
}

// Version returns the server version
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &resp); err != nil {
		return "", fmt.Errorf("getting version: %w", err)
	}
	return resp.Version, nil
}

// GenerateChat sends a non-streaming chat request
func (c *Client) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}
	req.Stream = false

	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, fmt.Errorf("generating chat completion: %w", err)
	}
	if resp.Error != "" {
		return &resp, fmt.Errorf("model error: %s", resp.Error)
	}
	return &resp, nil
}

// GenerateChatStream sends a streaming chat request. The channel is closed
// after the final (Done) chunk, on error, or when ctx is cancelled. Errors
// after the request was accepted arrive as a chunk with Error set.
func (c *Client) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	out := make(chan ChatResponse)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		for {
			var chunk ChatResponse
			if err := dec.Decode(&chunk); err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return
				}
				chunk = ChatResponse{Error: fmt.Sprintf("decoding response: %v", err)}
			}

			select {
			case <-ctx.Done():
				return
			case out <- chunk:
			}
			if chunk.Done || chunk.Error != "" {
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(data)
		loggy.Debug("sending ollama request", "method", method, "path", path, "bytes", len(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if len(data) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("unmarshaling response body: %w", err)
	}
	return nil
}
