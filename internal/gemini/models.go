package gemini

// Part is a piece of content; only text parts are produced or read
type Part struct {
	Text string `json:"text,omitempty"`
}

// Content is a role-tagged list of parts. Gemini uses "user" and "model".
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerationConfig carries sampling parameters
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// ChatRequest is a generateContent request. Model is sent in the URL path.
type ChatRequest struct {
	Model             string            `json:"-"`
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one generated alternative
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// UsageMetadata reports token counts
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// ChatResponse is a generateContent response, also used for each stream event
type ChatResponse struct {
	Candidates    []Candidate    `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
	Error         *ErrorDetails  `json:"error,omitempty"`
}

// Text returns the text of the first candidate
func (r *ChatResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var out string
	for _, p := range r.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out
}

// FinishReason returns the finish reason of the first candidate, if any
func (r *ChatResponse) FinishReason() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].FinishReason
}

// StreamChunk is what GenerateChatStream delivers
type StreamChunk struct {
	Model string
	Text  string
	Done  bool
	Err   error
}

// ErrorDetails is the error object in an API error body
type ErrorDetails struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int           `json:"-"`
	Detail     *ErrorDetails `json:"error,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != nil && e.Detail.Message != "" {
		return "gemini: " + e.Detail.Message
	}
	return "gemini: unknown API error"
}

// Float64Ptr creates a float64 pointer from a value
func Float64Ptr(v float64) *float64 {
	return &v
}

// IntPtr creates an int pointer from a value
func IntPtr(v int) *int {
	return &v
}
