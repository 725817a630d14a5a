package workflow

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/tildaslashalef/critiq/internal/language"
	"github.com/tildaslashalef/critiq/internal/llm"
	"github.com/tildaslashalef/critiq/internal/review"
)

const fixSystemPrompt = `You are a careful software engineer applying code review fixes. Change only what the listed findings require and keep everything else byte for byte. Respond with the complete updated file inside a single fenced code block and nothing else.`

const fixUserTemplate = `Apply these review findings to {{.Path}}:
{{range .Violations}}
- line {{.Line}} [{{.Severity}}]: {{.Message}}
{{- if .OriginalCode}}
  replace: {{.OriginalCode}}
{{- end}}
{{- if .Suggestion}}
  with: {{.Suggestion}}
{{- end}}
{{- end}}

Current file:
` + "```{{.Fence}}\n{{.Content}}\n```"

var fixTmpl = template.Must(template.New("fix").Parse(fixUserTemplate))

// codeFence matches a fenced block; the body is group 1
var codeFence = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*?)\\n?```")

// fixable returns the violations a fix step should apply: everything the
// reviewer has not rejected
func fixable(r *review.ReviewResult) []review.Violation {
	if r == nil {
		return nil
	}
	var out []review.Violation
	for _, v := range r.Violations {
		if v.Status != review.StatusRejected {
			out = append(out, v)
		}
	}
	return out
}

func buildFixMessages(path, lang, content string, violations []review.Violation) ([]llm.Message, error) {
	var buf bytes.Buffer
	if err := fixTmpl.Execute(&buf, map[string]any{
		"Path":       path,
		"Fence":      language.FenceTag(lang),
		"Content":    strings.TrimRight(content, "\n"),
		"Violations": violations,
	}); err != nil {
		return nil, fmt.Errorf("rendering fix prompt: %w", err)
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: fixSystemPrompt},
		{Role: llm.RoleUser, Content: buf.String()},
	}, nil
}

// extractCode returns the longest fenced block of reply, or the trimmed
// reply when it has none. The trailing newline of original is kept.
func extractCode(reply, original string) string {
	code := ""
	for _, m := range codeFence.FindAllStringSubmatch(reply, -1) {
		if len(m[1]) > len(code) {
			code = m[1]
		}
	}
	if code == "" {
		code = strings.TrimSpace(reply)
	}
	if code != "" && strings.HasSuffix(original, "\n") && !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code
}
