package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Result is the outcome of a non-streaming call
type Result struct {
	Content string
	Model   string
}

// Call sends a single user prompt and returns the reply
func Call(ctx context.Context, client Client, prompt string) (*Result, error) {
	return Complete(ctx, client, ChatRequest{Messages: []Message{{Role: RoleUser, Content: prompt}}})
}

// Complete sends req and returns the reply
func Complete(ctx context.Context, client Client, req ChatRequest) (*Result, error) {
	resp, err := client.GenerateChat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("llm error: %s", resp.Error)
	}
	return &Result{Content: resp.Content, Model: resp.Model}, nil
}

// CallStreaming sends a single user prompt and hands each chunk of text to
// onChunk. It returns the concatenated reply.
func CallStreaming(ctx context.Context, client Client, prompt string, onChunk func(string) error) (string, error) {
	return Stream(ctx, client, ChatRequest{Messages: []Message{{Role: RoleUser, Content: prompt}}}, onChunk)
}

// Stream sends req as a streaming request. Cancellation is checked between
// chunks; when ctx is done Stream returns ctx.Err() with the text received so
// far. A non-nil error from onChunk stops the stream and is returned as is.
func Stream(ctx context.Context, client Client, req ChatRequest, onChunk func(string) error) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := client.GenerateChatStream(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return sb.String(), err
				}
				return sb.String(), nil
			}
			if chunk.Error != "" {
				return sb.String(), errors.New(chunk.Error)
			}
			if chunk.Content != "" {
				sb.WriteString(chunk.Content)
				if onChunk != nil {
					if err := onChunk(chunk.Content); err != nil {
						return sb.String(), err
					}
				}
			}
			if chunk.Completed {
				return sb.String(), nil
			}
		}
	}
}
