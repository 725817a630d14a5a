// Package language detects the language of a source file for review prompts
package language

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

const (
	Text    = "Text"
	Binary  = "Binary"
	Unknown = "Unknown"
)

const sampleSize = 8 * 1024

// Detector wraps go-enry with the fallbacks review prompts need
type Detector struct {
	logger *loggy.Logger
}

// NewDetector creates a detector
func NewDetector(logger *loggy.Logger) *Detector {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &Detector{logger: logger}
}

// Detect names the language of path given (a prefix of) its content. It
// never fails: unrecognized text is "Text", binary content is "Binary".
func (d *Detector) Detect(path string, content []byte) string {
	name := filepath.Base(path)
	if len(content) > sampleSize {
		content = content[:sampleSize]
	}

	if lang := enry.GetLanguage(name, content); lang != "" {
		return lang
	}
	if lang, _ := enry.GetLanguageByExtension(name); lang != "" {
		d.logger.Debug("fallback to extension detection", "path", path, "language", lang)
		return lang
	}
	if lang, _ := enry.GetLanguageByFilename(name); lang != "" {
		return lang
	}
	if len(content) > 0 && enry.IsBinary(content) {
		return Binary
	}
	if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" && strings.HasPrefix(name, ".") {
		return ext
	}
	d.logger.Debug("no language detected, defaulting to text", "path", path)
	return Text
}

// DetectFile reads a sample of path and detects its language
func (d *Detector) DetectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	sample, err := io.ReadAll(io.LimitReader(f, sampleSize))
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return d.Detect(path, sample), nil
}

// Reviewable reports whether path is worth sending to a reviewer: not binary,
// vendored, generated or documentation.
func (d *Detector) Reviewable(path string, content []byte) bool {
	if len(content) > 0 && enry.IsBinary(content) {
		return false
	}
	slashed := filepath.ToSlash(path)
	if strings.Contains(slashed, "/.git/") || enry.IsVendor(slashed) || enry.IsDocumentation(slashed) {
		return false
	}
	return !enry.IsGenerated(slashed, content)
}

// FenceTag returns the markdown code fence tag for a language
func FenceTag(lang string) string {
	switch lang {
	case "", Text, Binary, Unknown:
		return ""
	case "C++":
		return "cpp"
	case "C#":
		return "csharp"
	}
	return strings.ToLower(strings.ReplaceAll(lang, " ", ""))
}
