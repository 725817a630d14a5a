package claude

import "fmt"

// Message is one turn of the conversation; the system prompt travels separately
type Message struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/messages
type ChatRequest struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

// ContentBlock is one block of a response; only "text" blocks carry text
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ChatResponse is the body of a non-streaming response
type ChatResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      *UsageInfo     `json:"usage,omitempty"`
}

// Text concatenates all text blocks
func (r *ChatResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// UsageInfo reports token counts
type UsageInfo struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent is the payload of one server-sent "data:" line
type StreamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Model string `json:"model"`
	} `json:"message"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error *ErrorDetails `json:"error,omitempty"`
}

// StreamChunk is what GenerateChatStream delivers
type StreamChunk struct {
	Model string
	Text  string
	Done  bool
	Err   error
}

// ErrorDetails is the error object inside an API error body
type ErrorDetails struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// APIError is returned for non-200 responses
type APIError struct {
	StatusCode int          `json:"-"`
	Details    ErrorDetails `json:"error"`
}

func (e *APIError) Error() string {
	if e.Details.Message == "" {
		return fmt.Sprintf("claude: API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("claude: %s: %s (status %d)", e.Details.Type, e.Details.Message, e.StatusCode)
}
