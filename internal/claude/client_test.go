package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/critiq/internal/config"
)

// errorTransport is an http.RoundTripper that returns an error
type errorTransport struct {
	err error
}

func (t *errorTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, t.err
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.ClaudeConfig{
		APIKey:     "test-api-key",
		BaseURL:    server.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	})
	client.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return client
}

func userMessage(text string) []Message {
	return []Message{{Role: "user", Content: text}}
}

func TestNewClient(t *testing.T) {
	client := NewClient(config.ClaudeConfig{BaseURL: "https://api.anthropic.com/"})
	assert.Equal(t, "https://api.anthropic.com", client.baseURL)
	assert.Equal(t, "2023-06-01", client.apiVersion)
	assert.Equal(t, "claude-3-7-sonnet-20250219", client.defaultModel)
	assert.Equal(t, 4096, client.maxTokens)
}

func TestGenerateChat(t *testing.T) {
	var got ChatRequest
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ChatResponse{
			ID:    "msg_123",
			Model: got.Model,
			Role:  "assistant",
			Content: []ContentBlock{
				{Type: "text", Text: "Hello, "},
				{Type: "tool_use"},
				{Type: "text", Text: "world"},
			},
			StopReason: "end_turn",
		})
	})

	resp, err := client.GenerateChat(context.Background(), ChatRequest{
		System:   "be terse",
		Messages: userMessage("Hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", resp.Text())
	assert.Equal(t, "claude-3-7-sonnet-20250219", got.Model)
	assert.Equal(t, 4096, got.MaxTokens)
	assert.Equal(t, "be terse", got.System)
	assert.False(t, got.Stream)
}

func TestGenerateChatRetries(t *testing.T) {
	cases := []struct {
		name          string
		statuses      []int
		expectCalls   int32
		expectError   bool
		expectedError string
	}{
		{name: "server error then success", statuses: []int{500, 200}, expectCalls: 2},
		{name: "rate limited then success", statuses: []int{429, 200}, expectCalls: 2},
		{name: "bad request is not retried", statuses: []int{400}, expectCalls: 1, expectError: true, expectedError: "invalid_request_error"},
		{name: "retries exhausted", statuses: []int{503, 503, 503, 503}, expectCalls: 3, expectError: true, expectedError: "status 503"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tc.statuses[min(int(n)-1, len(tc.statuses)-1)]
				w.WriteHeader(status)
				if status != http.StatusOK {
					fmt.Fprintf(w, `{"type":"error","error":{"type":"invalid_request_error","message":"nope"}}`)
					return
				}
				fmt.Fprint(w, `{"id":"msg_1","content":[{"type":"text","text":"ok"}]}`)
			})

			resp, err := client.GenerateChat(context.Background(), ChatRequest{Messages: userMessage("hi")})
			assert.Equal(t, tc.expectCalls, atomic.LoadInt32(&calls))
			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError)
				var apiErr *APIError
				assert.True(t, errors.As(err, &apiErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", resp.Text())
		})
	}
}

func TestGenerateChatStream(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			"event: message_start",
			`data: {"type":"message_start","message":{"model":"claude-test"}}`,
			"",
			`data: {"type":"content_block_start"}`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`,
			`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`,
			`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
			`data: {"type":"message_stop"}`,
		}
		for _, e := range events {
			fmt.Fprintln(w, e)
		}
	})

	stream, err := client.GenerateChatStream(context.Background(), ChatRequest{Messages: userMessage("hi")})
	require.NoError(t, err)

	var text string
	var done bool
	for chunk := range stream {
		require.NoError(t, chunk.Err)
		assert.Equal(t, "claude-test", chunk.Model)
		text += chunk.Text
		done = done || chunk.Done
	}
	assert.Equal(t, "Hello", text)
	assert.True(t, done)
}

func TestGenerateChatStreamErrors(t *testing.T) {
	t.Run("status error before streaming", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		})
		stream, err := client.GenerateChatStream(context.Background(), ChatRequest{Messages: userMessage("hi")})
		require.Error(t, err)
		assert.Nil(t, stream)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "authentication_error", apiErr.Details.Type)
	})

	t.Run("error event mid stream", func(t *testing.T) {
		client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `data: {"type":"content_block_delta","delta":{"text":"partial"}}`)
			fmt.Fprintln(w, `data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		})
		stream, err := client.GenerateChatStream(context.Background(), ChatRequest{Messages: userMessage("hi")})
		require.NoError(t, err)

		var chunks []StreamChunk
		for c := range stream {
			chunks = append(chunks, c)
		}
		require.Len(t, chunks, 2)
		assert.Equal(t, "partial", chunks[0].Text)
		require.Error(t, chunks[1].Err)
		assert.Contains(t, chunks[1].Err.Error(), "Overloaded")
	})
}

func TestContextCancellation(t *testing.T) {
	release := make(chan struct{})
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"type":"content_block_delta","delta":{"text":"first"}}`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.GenerateChatStream(ctx, ChatRequest{Messages: userMessage("hi")})
	require.NoError(t, err)

	first := <-stream
	assert.Equal(t, "first", first.Text)

	cancel()

	select {
	case _, open := <-stream:
		for open {
			_, open = <-stream
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not closed after cancellation")
	}
}

func TestNetworkError(t *testing.T) {
	client := NewClient(config.ClaudeConfig{APIKey: "k", BaseURL: "https://api.example.com", MaxRetries: 1})
	client.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	client.httpClient.Transport = &errorTransport{err: errors.New("network error")}

	resp, err := client.GenerateChat(context.Background(), ChatRequest{Messages: userMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network error")
	assert.Nil(t, resp)

	stream, err := client.GenerateChatStream(context.Background(), ChatRequest{Messages: userMessage("hi")})
	require.Error(t, err)
	assert.Nil(t, stream)
}
