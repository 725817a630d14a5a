package utils

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/goombaio/namegenerator"
)

// GenerateName creates a memorable hyphenated name such as "wispy-dust"
// from seed. The same seed always yields the same name.
func GenerateName(seed int64) string {
	name := namegenerator.NewNameGenerator(seed).Generate()
	return strings.ReplaceAll(name, "_", "-")
}

// GenerateRunName creates a random name for a workflow run
func GenerateRunName() string {
	return GenerateName(time.Now().UTC().UnixNano())
}

// SanitizeName turns free text into a lowercase, hyphen separated identifier
func SanitizeName(s string) string {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))

	replacer := strings.NewReplacer(
		"_", "-",
		".", "-",
		",", "-",
		";", "-",
		":", "-",
		"/", "-",
		"\\", "-",
	)
	name = replacer.Replace(name)

	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	return strings.Trim(name, "-")
}

// Truncate shortens s to at most max runes, marking the cut with "..."
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if max <= 3 || len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// CopyToClipboard copies the given text to the system clipboard
func CopyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		cmd = exec.Command("xclip", "-selection", "clipboard")
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("unsupported platform for clipboard operations")
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}
