package review

import (
	"path/filepath"
	"strings"
)

// fileTail returns the last path segment, treating both / and \ as separators
func fileTail(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func normalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

// resolveFileIdentity finds the stored result that best matches query when
// the same file may have been saved as an absolute path, a repository
// relative path or a bare file name. The stages run in a fixed order and the
// first stage with a match wins; within a stage the first result in stored
// order wins.
func resolveFileIdentity(results []ReviewResult, query string, roots []string) *ReviewResult {
	tail := fileTail(query)
	rel := relativeTo(roots, query)

	first := func(match func(r *ReviewResult) bool) *ReviewResult {
		for i := range results {
			if match(&results[i]) {
				return &results[i]
			}
		}
		return nil
	}

	stages := []func(r *ReviewResult) bool{
		// same file name, and there is feedback to carry over
		func(r *ReviewResult) bool {
			return len(r.Violations) > 0 && fileTail(r.File) == tail
		},
		func(r *ReviewResult) bool {
			return r.File == query
		},
		func(r *ReviewResult) bool {
			return fileTail(r.File) == tail
		},
		func(r *ReviewResult) bool {
			return r.File != "" && (strings.Contains(r.File, query) || strings.Contains(query, r.File))
		},
		func(r *ReviewResult) bool {
			return rel != "" && r.File != "" && (strings.Contains(r.File, rel) || strings.Contains(rel, r.File))
		},
		func(r *ReviewResult) bool {
			return normalizePath(r.File) == normalizePath(query)
		},
	}

	if tail == "" {
		stages = stages[1:2]
	}
	for _, stage := range stages {
		if r := first(stage); r != nil {
			return r
		}
	}
	return nil
}

// relativeTo returns query relative to the first workspace root, or "" when
// there is no root or query lies outside it.
func relativeTo(roots []string, query string) string {
	if len(roots) == 0 || roots[0] == "" {
		return ""
	}
	rel, err := filepath.Rel(roots[0], query)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}
