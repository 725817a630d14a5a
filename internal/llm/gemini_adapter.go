package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/gemini"
)

type geminiClientAdapter struct {
	client  *gemini.Client
	config  config.GeminiConfig
	limiter *rate.Limiter
}

func newGeminiClientAdapter(client *gemini.Client, cfg config.GeminiConfig, limiter *rate.Limiter) *geminiClientAdapter {
	return &geminiClientAdapter{client: client, config: cfg, limiter: limiter}
}

// request maps roles onto Gemini's user/model pair and lifts system text
// into systemInstruction.
func (a *geminiClientAdapter) request(req ChatRequest) gemini.ChatRequest {
	system, rest := splitSystem(req.Messages)
	out := gemini.ChatRequest{
		Model:    req.Model,
		Contents: make([]gemini.Content, 0, len(rest)),
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:     temperatureOr(req.Temperature, a.config.Temperature),
			MaxOutputTokens: req.MaxTokens,
		},
	}
	if system != "" {
		out.SystemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: system}}}
	}
	for _, m := range rest {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out.Contents = append(out.Contents, gemini.Content{Role: role, Parts: []gemini.Part{{Text: m.Content}}})
	}
	return out
}

// GenerateChat implements Client
func (a *geminiClientAdapter) GenerateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	gr := a.request(req)
	resp, err := a.client.GenerateChat(ctx, gr)
	if err != nil {
		return nil, fmt.Errorf("gemini chat generation failed: %w", err)
	}
	model := resp.ModelVersion
	if model == "" {
		model = gr.Model
	}
	return &ChatResponse{Content: resp.Text(), Model: model, Completed: true}, nil
}

// GenerateChatStream implements Client
func (a *geminiClientAdapter) GenerateChatStream(ctx context.Context, req ChatRequest) (<-chan ChatResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	in, err := a.client.GenerateChatStream(ctx, a.request(req))
	if err != nil {
		return nil, fmt.Errorf("gemini chat stream failed: %w", err)
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
