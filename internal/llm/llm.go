// Package llm puts the Ollama, Claude and Gemini clients behind one
// interface, rate limited per provider.
package llm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/critiq/internal/claude"
	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/gemini"
	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/ollama"
)

// ErrNoProvider is returned when no provider is configured
var ErrNoProvider = errors.New("no LLM clients initialized - check configuration")

// Role values for Message.Role
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a chat turn with role and content
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral chat request. Zero values fall back to
// the provider's configured defaults.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	// JSONOutput asks providers that support it for a JSON-only reply
	JSONOutput bool `json:"json_output,omitempty"`
}

// ChatResponse is a complete reply, or one chunk of a streamed reply
type ChatResponse struct {
	Content   string `json:"content"`
	Model     string `json:"model"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

// Client is implemented by every provider adapter
type Client interface {
	// GenerateChat sends a non-streaming chat request
	GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// GenerateChatStream sends a streaming chat request. The channel closes
	// after a Completed chunk, an Error chunk, or ctx cancellation.
	GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan ChatResponse, error)
}

// ClientType names a provider
type ClientType string

const (
	Ollama ClientType = "ollama"
	Claude ClientType = "claude"
	Gemini ClientType = "gemini"
)

// Factory creates and returns LLM clients
type Factory struct {
	config *config.Config
	logger *loggy.Logger

	ollama *ollama.Client
	claude *claude.Client
	gemini *gemini.Client

	ollamaLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
	geminiLimiter *rate.Limiter
}

// newLimiter builds a limiter from requests per minute and burst; rpm <= 0 disables limiting
func newLimiter(rpm, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// NewFactory initializes a client for every provider that has enough configuration
func NewFactory(cfg *config.Config, logger *loggy.Logger) *Factory {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	f := &Factory{config: cfg, logger: logger}

	if cfg.Ollama.Endpoint != "" {
		f.ollama = ollama.NewClient(cfg.Ollama)
		f.ollamaLimiter = newLimiter(cfg.Ollama.RequestsPerMinute, cfg.Ollama.BurstLimit)
		logger.Debug("initialized Ollama client", "endpoint", cfg.Ollama.Endpoint, "model", cfg.Ollama.Model)
	}
	if cfg.Claude.APIKey != "" {
		f.claude = claude.NewClient(cfg.Claude)
		f.claudeLimiter = newLimiter(cfg.Claude.RequestsPerMinute, cfg.Claude.BurstLimit)
		logger.Debug("initialized Claude client", "model", cfg.Claude.Model)
	}
	if cfg.Gemini.APIKey != "" {
		f.gemini = gemini.NewClient(cfg.Gemini)
		f.geminiLimiter = newLimiter(cfg.Gemini.RequestsPerMinute, cfg.Gemini.BurstLimit)
		logger.Debug("initialized Gemini client", "model", cfg.Gemini.Model)
	}
	return f
}

// GetClient returns the adapter for one provider
func (f *Factory) GetClient(clientType ClientType) (Client, error) {
	switch clientType {
	case Ollama:
		if f.ollama == nil {
			return nil, fmt.Errorf("ollama client not initialized - check configuration")
		}
		return newOllamaClientAdapter(f.ollama, f.config.Ollama, f.ollamaLimiter), nil
	case Claude:
		if f.claude == nil {
			return nil, fmt.Errorf("claude client not initialized - check configuration")
		}
		return newClaudeClientAdapter(f.claude, f.config.Claude, f.claudeLimiter), nil
	case Gemini:
		if f.gemini == nil {
			return nil, fmt.Errorf("gemini client not initialized - check configuration")
		}
		return newGeminiClientAdapter(f.gemini, f.config.Gemini, f.geminiLimiter), nil
	default:
		return nil, fmt.Errorf("unknown client type: %s", clientType)
	}
}

// GetDefaultClient returns the configured default provider, falling back to
// the first available one in the order ollama, claude, gemini.
func (f *Factory) GetDefaultClient() (Client, ClientType, error) {
	defaultType := ClientType(f.config.DefaultLLMProvider)
	client, err := f.GetClient(defaultType)
	if err == nil {
		return client, defaultType, nil
	}

	f.logger.Warn("default LLM provider not available, falling back", "default", defaultType, "error", err)
	for _, t := range []ClientType{Ollama, Claude, Gemini} {
		if client, err := f.GetClient(t); err == nil {
			return client, t, nil
		}
	}
	return nil, "", ErrNoProvider
}

// ModelFor returns the configured model name for a provider
func (f *Factory) ModelFor(clientType ClientType) string {
	switch clientType {
	case Ollama:
		return f.config.Ollama.Model
	case Claude:
		return f.config.Claude.Model
	case Gemini:
		return f.config.Gemini.Model
	}
	return ""
}

// Available lists the providers that were initialized
func (f *Factory) Available() []ClientType {
	var out []ClientType
	if f.ollama != nil {
		out = append(out, Ollama)
	}
	if f.claude != nil {
		out = append(out, Claude)
	}
	if f.gemini != nil {
		out = append(out, Gemini)
	}
	return out
}

// splitSystem separates system messages, joined by blank lines, from the rest
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

func temperatureOr(req *float64, fallback float64) *float64 {
	if req != nil {
		return req
	}
	if fallback <= 0 {
		return nil
	}
	return &fallback
}
