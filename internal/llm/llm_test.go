package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/storage"
)

// mockClient is a testify mock implementing Client
type mockClient struct {
	mock.Mock
}

func (m *mockClient) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*ChatResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan ChatResponse, error) {
	args := m.Called(ctx, req)
	if ch := args.Get(0); ch != nil {
		return ch.(<-chan ChatResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// chunks returns a closed, buffered channel holding responses
func chunks(responses ...ChatResponse) <-chan ChatResponse {
	ch := make(chan ChatResponse, len(responses))
	for _, r := range responses {
		ch <- r
	}
	close(ch)
	return ch
}

func TestNewFactory(t *testing.T) {
	logger := loggy.NewNoopLogger()

	tests := []struct {
		name      string
		config    *config.Config
		available []ClientType
	}{
		{
			name:      "ollama only",
			config:    &config.Config{Ollama: config.OllamaConfig{Endpoint: "http://localhost:11434"}},
			available: []ClientType{Ollama},
		},
		{
			name:      "claude and gemini",
			config:    &config.Config{Claude: config.ClaudeConfig{APIKey: "k"}, Gemini: config.GeminiConfig{APIKey: "g"}},
			available: []ClientType{Claude, Gemini},
		},
		{
			name:   "nothing configured",
			config: &config.Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(tt.config, logger)
			assert.Equal(t, tt.available, factory.Available())

			for _, ct := range []ClientType{Ollama, Claude, Gemini} {
				client, err := factory.GetClient(ct)
				if contains(tt.available, ct) {
					assert.NoError(t, err)
					assert.NotNil(t, client)
				} else {
					assert.Error(t, err)
					assert.Nil(t, client)
				}
			}
		})
	}
}

func contains(list []ClientType, ct ClientType) bool {
	for _, c := range list {
		if c == ct {
			return true
		}
	}
	return false
}

func TestGetDefaultClient(t *testing.T) {
	logger := loggy.NewNoopLogger()

	t.Run("configured default", func(t *testing.T) {
		f := NewFactory(&config.Config{
			DefaultLLMProvider: "claude",
			Ollama:             config.OllamaConfig{Endpoint: "http://localhost:11434"},
			Claude:             config.ClaudeConfig{APIKey: "k"},
		}, logger)
		_, ct, err := f.GetDefaultClient()
		require.NoError(t, err)
		assert.Equal(t, Claude, ct)
	})

	t.Run("falls back to first available", func(t *testing.T) {
		f := NewFactory(&config.Config{
			DefaultLLMProvider: "claude",
			Gemini:             config.GeminiConfig{APIKey: "g"},
		}, logger)
		_, ct, err := f.GetDefaultClient()
		require.NoError(t, err)
		assert.Equal(t, Gemini, ct)
	})

	t.Run("no providers", func(t *testing.T) {
		f := NewFactory(&config.Config{DefaultLLMProvider: "ollama"}, logger)
		_, _, err := f.GetDefaultClient()
		assert.ErrorIs(t, err, ErrNoProvider)
	})

	t.Run("unknown type", func(t *testing.T) {
		f := NewFactory(&config.Config{}, logger)
		_, err := f.GetClient("openai")
		assert.ErrorContains(t, err, "unknown client type")
	})
}

func TestOllamaAdapterThroughFactory(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got["stream"] == true {
			fmt.Fprintln(w, `{"model":"gemma3","message":{"role":"assistant","content":"a"},"done":false}`)
			fmt.Fprintln(w, `{"model":"gemma3","message":{"role":"assistant","content":"b"},"done":true}`)
			return
		}
		fmt.Fprint(w, `{"model":"gemma3","message":{"role":"assistant","content":"{}"},"done":true}`)
	}))
	defer server.Close()

	f := NewFactory(&config.Config{
		DefaultLLMProvider: "ollama",
		Ollama: config.OllamaConfig{
			Endpoint:    server.URL,
			Model:       "gemma3",
			Timeout:     5 * time.Second,
			MaxTokens:   256,
			Temperature: 0.1,
		},
	}, loggy.NewNoopLogger())
	client, _, err := f.GetDefaultClient()
	require.NoError(t, err)

	resp, err := client.GenerateChat(context.Background(), ChatRequest{
		Messages:   []Message{{Role: RoleUser, Content: "review"}},
		JSONOutput: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, "json", got["format"])
	opts := got["options"].(map[string]any)
	assert.EqualValues(t, 256, opts["num_predict"])
	assert.InDelta(t, 0.1, opts["temperature"], 0.0001)

	text, err := CallStreaming(context.Background(), client, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "one"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "two"},
		{Role: RoleAssistant, Content: "hello"},
	})
	assert.Equal(t, "one\n\ntwo", system)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}, rest)
}

func TestGeminiRequestMapping(t *testing.T) {
	a := newGeminiClientAdapter(nil, config.GeminiConfig{Temperature: 0.4}, nil)
	req := a.request(ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	}})
	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "sys", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.InDelta(t, 0.4, *req.GenerationConfig.Temperature, 0.0001)
}

func TestNewLimiter(t *testing.T) {
	unlimited := newLimiter(0, 0)
	assert.Equal(t, 1, unlimited.Burst())
	assert.True(t, unlimited.Allow())
	assert.True(t, unlimited.Allow())

	limited := newLimiter(60, 2)
	assert.InDelta(t, 1.0, float64(limited.Limit()), 0.0001)
	assert.True(t, limited.Allow())
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())
}

func TestCall(t *testing.T) {
	m := new(mockClient)
	m.On("GenerateChat", mock.Anything, ChatRequest{Messages: []Message{{Role: RoleUser, Content: "p"}}}).
		Return(&ChatResponse{Content: "reply", Model: "m"}, nil).Once()

	res, err := Call(context.Background(), m, "p")
	require.NoError(t, err)
	assert.Equal(t, "reply", res.Content)
	m.AssertExpectations(t)

	m2 := new(mockClient)
	m2.On("GenerateChat", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	_, err = Call(context.Background(), m2, "p")
	assert.EqualError(t, err, "down")

	m3 := new(mockClient)
	m3.On("GenerateChat", mock.Anything, mock.Anything).Return(&ChatResponse{Error: "model not found"}, nil)
	_, err = Call(context.Background(), m3, "p")
	assert.ErrorContains(t, err, "model not found")
}

func TestCachedClient(t *testing.T) {
	m := new(mockClient)
	req := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "same"}}}
	m.On("GenerateChat", mock.Anything, req).Return(&ChatResponse{Content: "once"}, nil).Once()
	other := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "other"}}}
	m.On("GenerateChat", mock.Anything, other).Return(nil, errors.New("boom")).Twice()

	c := NewCachedClient(m, time.Minute)
	for i := 0; i < 3; i++ {
		resp, err := c.GenerateChat(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "once", resp.Content)
	}
	assert.Equal(t, 1, c.Len())

	// errors are not cached
	for i := 0; i < 2; i++ {
		_, err := c.GenerateChat(context.Background(), other)
		assert.Error(t, err)
	}
	m.AssertExpectations(t)

	c.Flush()
	assert.Equal(t, 0, c.Len())
}

func TestCachedClientPersists(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	req := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "review"}}, JSONOutput: true}

	m := new(mockClient)
	m.On("GenerateChat", mock.Anything, req).Return(&ChatResponse{Content: `{"summary": "ok"}`, Model: "m"}, nil).Once()

	first := NewCachedClient(m, time.Hour, WithCacheBackend(backend), WithCacheLogger(loggy.NewNoopLogger()))
	_, err := first.GenerateChat(ctx, req)
	require.NoError(t, err)

	ok, err := backend.Exists(ctx, CacheKey)
	require.NoError(t, err)
	assert.True(t, ok)

	// a later process answers from the stored document
	second := NewCachedClient(new(mockClient), time.Hour, WithCacheBackend(backend))
	assert.Equal(t, 1, second.Len())
	resp, err := second.GenerateChat(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, &ChatResponse{Content: `{"summary": "ok"}`, Model: "m"}, resp)
	m.AssertExpectations(t)

	second.Flush()
	ok, err = backend.Exists(ctx, CacheKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, NewCachedClient(m, time.Hour, WithCacheBackend(backend)).Len())
}

func TestCachedClientSkipsExpiredAndCorrupt(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	require.NoError(t, storage.SaveJSON(ctx, backend, CacheKey, map[string]cacheEntry{
		"old":   {Response: ChatResponse{Content: "stale"}, Expiration: time.Now().Add(-time.Minute).UnixNano()},
		"fresh": {Response: ChatResponse{Content: "live"}, Expiration: time.Now().Add(time.Minute).UnixNano()},
	}))
	c := NewCachedClient(new(mockClient), time.Hour, WithCacheBackend(backend), WithCacheLogger(loggy.NewNoopLogger()))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, backend.WriteText(ctx, CacheKey, "{not json"))
	c = NewCachedClient(new(mockClient), time.Hour, WithCacheBackend(backend), WithCacheLogger(loggy.NewNoopLogger()))
	assert.Equal(t, 0, c.Len())
}

func TestCachedClientFilter(t *testing.T) {
	req := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "review"}}}
	m := new(mockClient)
	m.On("GenerateChat", mock.Anything, req).Return(&ChatResponse{Content: "I cannot review this"}, nil).Twice()

	c := NewCachedClient(m, time.Hour, WithCacheFilter(func(_ ChatRequest, resp *ChatResponse) bool {
		return strings.HasPrefix(resp.Content, "{")
	}))
	for i := 0; i < 2; i++ {
		resp, err := c.GenerateChat(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "I cannot review this", resp.Content)
	}
	assert.Equal(t, 0, c.Len())
	m.AssertExpectations(t)
}

func TestCacheKeyDiffersByModel(t *testing.T) {
	a := cacheKey(ChatRequest{Model: "a", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	b := cacheKey(ChatRequest{Model: "b", Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
