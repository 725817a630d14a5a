// Package extractor pulls a structured review object out of free-form LLM
// output. Models wrap their JSON in markdown fences, prose and trailing
// garbage, and often write JSON5-ish syntax; the extractor tries a fixed
// sequence of candidate patterns and parse strategies and returns the first
// object that parses.
package extractor

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// ErrExtractionFailed is returned when no strategy produced a usable object
var ErrExtractionFailed = errors.New("No valid JSON found in LLM response")

// syntaxErrorMarker starts the parser error text some models append after
// their JSON
const syntaxErrorMarker = "SyntaxError"

var (
	// Ordered most specific first.
	candidatePatterns = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"json fence", regexp.MustCompile("```json\\s*(\\{[\\s\\S]*?\\})\\s*```")},
		{"plain fence", regexp.MustCompile("```\\s*(\\{[\\s\\S]*?\\})\\s*```")},
		{"object", regexp.MustCompile(`\{[\s\S]*?\}`)},
	}

	// One level of nesting.
	balancedBraces = regexp.MustCompile(`\{(?:[^{}]|\{[^{}]*\})*\}`)
)

type strategy struct {
	name  string
	parse func(string) (map[string]any, bool)
}

var strategies = []strategy{
	{"lenient", parseLenient},
	{"strip comments + lenient", func(s string) (map[string]any, bool) {
		return parseLenient(stripComments(s))
	}},
	{"cleanup + strict", func(s string) (map[string]any, bool) {
		return parseStrict(repair(s))
	}},
	{"strip comments + cleanup + strict", func(s string) (map[string]any, bool) {
		return parseStrict(repair(stripComments(s)))
	}},
}

// JSONExtractor extracts review objects and logs which strategy succeeded
type JSONExtractor struct {
	logger *loggy.Logger
}

// NewJSONExtractor creates an extractor. A nil logger disables logging.
func NewJSONExtractor(logger *loggy.Logger) *JSONExtractor {
	return &JSONExtractor{logger: logger}
}

// Extract returns the first acceptable JSON object found in content
func (e *JSONExtractor) Extract(content string) (map[string]any, error) {
	return extract(content, acceptable, e.logger)
}

// ExtractReview extracts a review-shaped object and converts it into a
// ReviewOutput. A reply that is itself one JSON object is parsed whole;
// otherwise candidates are tried in the same order as Extract but only an
// object carrying violations, issues or a summary is accepted, so a single
// violation lifted out of a larger reply never passes for a review.
func (e *JSONExtractor) ExtractReview(content string) (*ReviewOutput, error) {
	trimmed := strings.TrimSpace(stripSyntaxError(content))
	if strings.HasPrefix(trimmed, "{") {
		if obj, name, ok := tryStrategies(trimmed, reviewShaped); ok {
			e.logger.Debug("extracted review JSON", "pattern", "whole reply", "strategy", name)
			return ParseReview(obj), nil
		}
	}

	raw, err := extract(content, reviewShaped, e.logger)
	if err != nil {
		return nil, err
	}
	return ParseReview(raw), nil
}

// Extract is the logger-free form of JSONExtractor.Extract
func Extract(content string) (map[string]any, error) {
	return extract(content, acceptable, nil)
}

// stripSyntaxError drops parser error text appended after the last closing
// brace. A marker followed by a '}' belongs to the payload and is kept.
func stripSyntaxError(content string) string {
	from := strings.LastIndexByte(content, '}') + 1
	if i := strings.Index(content[from:], syntaxErrorMarker); i >= 0 {
		return content[:from+i]
	}
	return content
}

func extract(content string, accept func(map[string]any) bool, logger *loggy.Logger) (map[string]any, error) {
	text := stripSyntaxError(content)

	for _, p := range candidatePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			candidate := m[0]
			if len(m) > 1 {
				candidate = m[1]
			}
			if obj, name, ok := tryStrategies(candidate, accept); ok {
				logger.Debug("extracted review JSON", "pattern", p.name, "strategy", name)
				return obj, nil
			}
		}
	}

	candidates := balancedBraces.FindAllString(text, -1)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	for _, c := range candidates {
		if obj, name, ok := tryStrategies(c, accept); ok {
			logger.Debug("extracted review JSON", "pattern", "balanced braces", "strategy", name)
			return obj, nil
		}
	}

	if span, ok := longestSpan(text); ok {
		fixed := repair(span)
		if obj, ok := parseLenient(fixed); ok && accept(obj) {
			logger.Debug("extracted review JSON", "pattern", "repair", "strategy", "lenient")
			return obj, nil
		}
		if obj, ok := parseStrict(fixed); ok && accept(obj) {
			logger.Debug("extracted review JSON", "pattern", "repair", "strategy", "strict")
			return obj, nil
		}
	}

	logger.Warn("no JSON object found in LLM response", "length", len(content))
	return nil, ErrExtractionFailed
}

func tryStrategies(candidate string, accept func(map[string]any) bool) (map[string]any, string, bool) {
	for _, s := range strategies {
		if obj, ok := s.parse(candidate); ok && accept(obj) {
			return obj, s.name, true
		}
	}
	return nil, "", false
}

// acceptable rejects the empty object, which usually means a pattern latched
// onto an unrelated pair of braces.
func acceptable(obj map[string]any) bool {
	if obj == nil {
		return false
	}
	if _, ok := obj["violations"]; ok {
		return true
	}
	if _, ok := obj["summary"]; ok {
		return true
	}
	return len(obj) > 0
}

// reviewShaped accepts only objects that carry a review
func reviewShaped(obj map[string]any) bool {
	for _, key := range []string{"violations", "issues", "summary", "overall_assessment"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func parseLenient(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json5.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

func parseStrict(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

// longestSpan returns the text from the first '{' to the last '}'
func longestSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
