package language

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

func TestDetect(t *testing.T) {
	d := NewDetector(loggy.NewNoopLogger())

	tests := []struct {
		name     string
		path     string
		content  string
		expected string
	}{
		{name: "go", path: "main.go", content: "package main", expected: "Go"},
		{name: "javascript", path: "src/a.js", content: "const x = 1;", expected: "JavaScript"},
		{name: "python", path: "script.py", content: "def main():\n    pass\n", expected: "Python"},
		{name: "rust", path: "lib.rs", content: "fn main() {}", expected: "Rust"},
		{name: "dockerfile by name", path: "Dockerfile", content: "FROM alpine", expected: "Dockerfile"},
		{name: "binary", path: "blob", content: "\x00\x01\x02\x03", expected: Binary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, d.Detect(tt.path, []byte(tt.content)))
		})
	}
}

func TestDetectFile(t *testing.T) {
	d := NewDetector(loggy.NewNoopLogger())
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644))

	lang, err := d.DetectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Go", lang)

	_, err = d.DetectFile(filepath.Join(dir, "missing.go"))
	assert.Error(t, err)
}

func TestReviewable(t *testing.T) {
	d := NewDetector(loggy.NewNoopLogger())

	assert.True(t, d.Reviewable("internal/app/app.go", []byte("package app")))
	assert.False(t, d.Reviewable("vendor/github.com/x/y.go", []byte("package y")))
	assert.False(t, d.Reviewable("node_modules/left-pad/index.js", []byte("module.exports = 1")))
	assert.False(t, d.Reviewable("image.png", []byte{0x89, 'P', 'N', 'G', 0x00, 0x00}))
	assert.False(t, d.Reviewable("docs/guide.md", []byte("# Guide")))
}

func TestFenceTag(t *testing.T) {
	assert.Equal(t, "go", FenceTag("Go"))
	assert.Equal(t, "cpp", FenceTag("C++"))
	assert.Equal(t, "csharp", FenceTag("C#"))
	assert.Equal(t, "typescript", FenceTag("TypeScript"))
	assert.Equal(t, "", FenceTag(Text))
}
