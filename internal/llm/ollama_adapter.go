package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/ollama"
)

type ollamaClientAdapter struct {
	client  *ollama.Client
	config  config.OllamaConfig
	limiter *rate.Limiter
}

func newOllamaClientAdapter(client *ollama.Client, cfg config.OllamaConfig, limiter *rate.Limiter) *ollamaClientAdapter {
	return &ollamaClientAdapter{client: client, config: cfg, limiter: limiter}
}

func (a *ollamaClientAdapter) request(req ChatRequest) ollama.ChatRequest {
	out := ollama.ChatRequest{
		Model:    req.Model,
		Messages: make([]ollama.Message, 0, len(req.Messages)),
		Options:  &ollama.RequestOptions{Temperature: temperatureOr(req.Temperature, a.config.Temperature)},
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, ollama.Message{Role: m.Role, Content: m.Content})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.config.MaxTokens
	}
	if maxTokens > 0 {
		out.Options.NumPredict = ollama.IntPtr(maxTokens)
	}
	if req.JSONOutput {
		out.Format = "json"
	}
	return out
}

// GenerateChat implements Client
func (a *ollamaClientAdapter) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	resp, err := a.client.GenerateChat(ctx, a.request(req))
	if err != nil {
		return nil, fmt.Errorf("ollama chat generation failed: %w", err)
	}
	return &ChatResponse{Content: resp.Message.Content, Model: resp.Model, Completed: resp.Done}, nil
}

// GenerateChatStream implements Client
func (a *ollamaClientAdapter) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	in, err := a.client.GenerateChatStream(ctx, a.request(req))
	if err != nil {
		return nil, fmt.Errorf("ollama chat stream failed: %w", err)
	}

	out := make(chan ChatResponse)
	go func() {
		defer close(out)
		for chunk := range in {
			resp := ChatResponse{Content: chunk.Message.Content, Model: chunk.Model, Completed: chunk.Done, Error: chunk.Error}
			if !forward(ctx, out, resp) {
				drain(in)
				return
			}
		}
	}()
	return out, nil
}

// forward sends resp unless ctx is done
func forward(ctx context.Context, out chan<- ChatResponse, resp ChatResponse) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- resp:
		return true
	}
}

// drain consumes the rest of a provider channel so its goroutine can exit
func drain[T any](in <-chan T) {
	for range in {
	}
}
