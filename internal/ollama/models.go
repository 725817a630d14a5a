package ollama

import "time"

// Message is one chat turn
type Message struct {
	Role    string `json:"role"` // user, assistant or system
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"` // "json" asks for a JSON-only reply
	Options  *RequestOptions `json:"options,omitempty"`
}

// ChatResponse is one reply object; streaming sends one per line
type ChatResponse struct {
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at"`
	Message         Message   `json:"message"`
	Done            bool      `json:"done"`
	DoneReason      string    `json:"done_reason,omitempty"`
	TotalDuration   int64     `json:"total_duration,omitempty"`
	PromptEvalCount int       `json:"prompt_eval_count,omitempty"`
	EvalCount       int       `json:"eval_count,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// RequestOptions are the generation parameters Ollama accepts
type RequestOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"` // max tokens
	NumCtx      *int     `json:"num_ctx,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
}

// ModelInfo describes a locally available model
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// ListModelsResponse is the body of GET /api/tags
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// VersionResponse is the body of GET /api/version
type VersionResponse struct {
	Version string `json:"version"`
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }
