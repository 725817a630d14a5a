package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/critiq/internal/claude"
	"github.com/tildaslashalef/critiq/internal/config"
)

type claudeClientAdapter struct {
	client  *claude.Client
	config  config.ClaudeConfig
	limiter *rate.Limiter
}

func newClaudeClientAdapter(client *claude.Client, cfg config.ClaudeConfig, limiter *rate.Limiter) *claudeClientAdapter {
	return &claudeClientAdapter{client: client, config: cfg, limiter: limiter}
}

func (a *claudeClientAdapter) request(req ChatRequest) claude.ChatRequest {
	system, rest := splitSystem(req.Messages)
	out := claude.ChatRequest{
		Model:       req.Model,
		System:      system,
		MaxTokens:   req.MaxTokens,
		Temperature: temperatureOr(req.Temperature, a.config.Temperature),
		Messages:    make([]claude.Message, 0, len(rest)),
	}
	for _, m := range rest {
		out.Messages = append(out.Messages, claude.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// GenerateChat implements Client
func (a *claudeClientAdapter) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	resp, err := a.client.GenerateChat(ctx, a.request(req))
	if err != nil {
		return nil, fmt.Errorf("claude chat generation failed: %w", err)
	}
	return &ChatResponse{Content: resp.Text(), Model: resp.Model, Completed: true}, nil
}

// GenerateChatStream implements Client
func (a *claudeClientAdapter) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	in, err := a.client.GenerateChatStream(ctx, a.request(req))
	if err != nil {
		return nil, fmt.Errorf("claude chat stream failed: %w", err)
	}

	out := make(chan ChatResponse)
	go func() {
		defer close(out)
		for chunk := range in {
			resp := ChatResponse{Content: chunk.Text, Model: chunk.Model, Completed: chunk.Done}
			if chunk.Err != nil {
				resp.Error = chunk.Err.Error()
			}
			if !forward(ctx, out, resp) {
				drain(in)
				return
			}
		}
	}()
	return out, nil
}
