package extractor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ReviewOutput is the typed form of an extracted review object
type ReviewOutput struct {
	Violations []Finding
	Summary    string
}

// Finding is one violation as reported by the model, with defaults applied
type Finding struct {
	Line         int
	Severity     string // high, medium or low
	Message      string
	OriginalCode string
	Suggestion   string
}

// ParseReview converts an extracted object into a ReviewOutput. Missing
// fields get defaults and entries that are not objects are skipped, so it
// never fails.
func ParseReview(raw map[string]any) *ReviewOutput {
	out := &ReviewOutput{Summary: firstString(raw, "summary", "overall_assessment")}

	list, ok := raw["violations"].([]any)
	if !ok {
		list, _ = raw["issues"].([]any)
	}
	out.Violations = make([]Finding, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		line := parseLineNumber(m["line"])
		if line == 0 {
			line = parseLineNumber(m["line_start"])
		}
		out.Violations = append(out.Violations, Finding{
			Line:         line,
			Severity:     NormalizeSeverity(firstString(m, "severity")),
			Message:      firstString(m, "message", "description", "title"),
			OriginalCode: firstString(m, "originalCode", "original_code", "code"),
			Suggestion:   firstString(m, "suggestion", "fix"),
		})
	}
	return out
}

// NormalizeSeverity maps the many words models use onto high, medium or low
func NormalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "critical", "error", "blocker", "major":
		return "high"
	case "low", "info", "minor", "nit", "suggestion", "trivial":
		return "low"
	default:
		return "medium"
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// parseLineNumber accepts numbers and numeric strings such as "12" or "12-14"
func parseLineNumber(value any) int {
	switch v := value.(type) {
	case float64:
		if v > 0 && v < math.MaxInt32 {
			return int(v)
		}
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		v = strings.TrimSpace(v)
		end := 0
		for end < len(v) && v[end] >= '0' && v[end] <= '9' {
			end++
		}
		if n, err := strconv.Atoi(v[:end]); err == nil {
			return n
		}
	}
	return 0
}
