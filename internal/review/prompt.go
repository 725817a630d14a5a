package review

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/tildaslashalef/critiq/internal/language"
	"github.com/tildaslashalef/critiq/internal/llm"
)

const systemInstructionTemplate = `You are a senior code reviewer analyzing {{.Language}} code. Your final statement MUST be a single valid JSON object. Text before it is tolerated; text after it is not.

Follow this schema EXACTLY:

{
  "violations": [
    {
      "line": 12,
      "severity": "high|medium|low",
      "message": "What is wrong and why it matters",
      "originalCode": "The EXACT code from the file that has the problem",
      "suggestion": "The corrected code that replaces originalCode"
    }
  ],
  "summary": "Brief overview of the findings"
}

Rules:
- "line" is the 1-based line number shown to the left of the code.
- Copy "originalCode" verbatim from the file; do not paraphrase it.
- "suggestion" must be a drop-in replacement for "originalCode".
- Look for bugs, security problems, performance issues, error handling gaps and unclear design.
- Order violations by line.
{{- if .HasFeedback}}
- The reviewer has already ruled on earlier findings for this file. Do not report rejected findings again. Approved findings that are still present may be reported again.
{{- end}}

If there are no issues, respond with {"violations": [], "summary": "No issues found"}.`

const userMessageTemplate = `Please review the following code.

File: {{.Path}} ({{.Language}})

` + "```" + `{{.Fence}}
{{.Numbered}}
` + "```" + `
{{- if .Feedback.Approved}}

## Previously approved findings
{{range .Feedback.Approved}}- line {{.Line}} [{{.Severity}}] {{.Message}}{{if .ReviewNote}} (reviewer note: {{.ReviewNote}}){{end}}
{{end}}
{{- end}}
{{- if .Feedback.Rejected}}

## Previously rejected findings (do not repeat)
{{range .Feedback.Rejected}}- line {{.Line}} [{{.Severity}}] {{.Message}}{{if .ReviewNote}} (reviewer note: {{.ReviewNote}}){{end}}
{{end}}
{{- end}}
`

var (
	systemTmpl = template.Must(template.New("system").Parse(systemInstructionTemplate))
	userTmpl   = template.Must(template.New("user").Parse(userMessageTemplate))
)

// PromptInput is everything a review prompt is built from
type PromptInput struct {
	Path     string
	Language string
	Content  string
	Feedback ReReviewFeedback
}

// NumberLines prefixes each line with its 1-based number, right aligned
func NumberLines(content string) string {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	width := len(fmt.Sprint(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%*d | %s", width, i+1, strings.TrimRight(line, "\r"))
	}
	return b.String()
}

// BuildSystemInstruction renders the reviewer instructions and response schema
func BuildSystemInstruction(lang string, hasFeedback bool) (string, error) {
	if lang == "" {
		lang = language.Text
	}
	var buf bytes.Buffer
	if err := systemTmpl.Execute(&buf, map[string]any{
		"Language":    lang,
		"HasFeedback": hasFeedback,
	}); err != nil {
		return "", fmt.Errorf("rendering system instruction: %w", err)
	}
	return buf.String(), nil
}

// BuildUserMessage renders the numbered code and any prior feedback
func BuildUserMessage(in PromptInput) (string, error) {
	var buf bytes.Buffer
	if err := userTmpl.Execute(&buf, map[string]any{
		"Path":     in.Path,
		"Language": in.Language,
		"Fence":    language.FenceTag(in.Language),
		"Numbered": NumberLines(in.Content),
		"Feedback": in.Feedback,
	}); err != nil {
		return "", fmt.Errorf("rendering user message: %w", err)
	}
	return buf.String(), nil
}

// BuildMessages returns the system and user messages for a review request
func BuildMessages(in PromptInput) ([]llm.Message, error) {
	system, err := BuildSystemInstruction(in.Language, !in.Feedback.Empty())
	if err != nil {
		return nil, err
	}
	user, err := BuildUserMessage(in)
	if err != nil {
		return nil, err
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}, nil
}
