package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tildaslashalef/critiq/internal/loggy"
)

//go:embed env.sample
var configFS embed.FS

// SetupConfigDirectory creates configDir and writes a sample .env into it.
// An existing .env is left alone unless backupExisting is set, in which case
// it is copied to a dated .bak file before being replaced.
func SetupConfigDirectory(configDir string, backupExisting bool) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	target := filepath.Join(configDir, ".env")
	if _, err := os.Stat(target); err == nil {
		if !backupExisting {
			return target, nil
		}
		existing, err := os.ReadFile(target)
		if err != nil {
			return "", fmt.Errorf("failed to read existing file for backup: %w", err)
		}
		backup := fmt.Sprintf("%s.%s.bak", target, time.Now().Format("2006-01-02"))
		if err := os.WriteFile(backup, existing, 0600); err != nil {
			return "", fmt.Errorf("failed to write backup file: %w", err)
		}
		loggy.Info("backed up existing env file", "backup", backup)
	}

	data, err := configFS.ReadFile("env.sample")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write env file: %w", err)
	}
	loggy.Info("wrote sample env file", "target", target)
	return target, nil
}
