package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration, or an error before Set was called
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// Set replaces the global configuration
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// Config is the complete application configuration
type Config struct {
	DefaultLLMProvider string // ollama, claude or gemini
	Ollama             OllamaConfig
	Claude             ClaudeConfig
	Gemini             GeminiConfig
	Review             ReviewConfig
	Chat               ChatConfig
	Workflow           WorkflowConfig
	Storage            StorageConfig
	Logging            LoggingConfig
	configDir          string
}

// OllamaConfig configures the Ollama client
type OllamaConfig struct {
	Endpoint            string
	Model               string
	Timeout             time.Duration
	MaxTokens           int
	Temperature         float64
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	RequestsPerMinute   int
	BurstLimit          int
}

// ClaudeConfig configures the Anthropic messages API client
type ClaudeConfig struct {
	APIKey            string
	BaseURL           string
	APIVersion        string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
	BurstLimit        int
}

// GeminiConfig configures the Gemini generateContent client
type GeminiConfig struct {
	APIKey            string
	BaseURL           string
	APIVersion        string // v1 or v1beta
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int
	BurstLimit        int
}

// ReviewConfig controls review passes
type ReviewConfig struct {
	MaxFileBytes   int64 // files larger than this are refused
	CacheEnabled   bool  // cache identical LLM requests
	CacheTTL       time.Duration
	WorkspaceRoots []string // used to match relative paths on re-review
}

// ChatConfig controls chat sessions
type ChatConfig struct {
	MaxSessions   int
	HistoryWindow int // number of prior messages sent as context
	SystemPrompt  string
}

// WorkflowConfig controls the agent workflow runner
type WorkflowConfig struct {
	DefinitionsPath string // optional YAML file with workflow definitions
	TestTimeout     time.Duration
	MaxRuns         int
}

// StorageConfig selects where review results, chat history and runs live
type StorageConfig struct {
	Backend     string // file or sqlite
	Dir         string // per-project directory for the file backend
	DBPath      string
	JournalMode string
	BusyTimeout int // milliseconds
}

// LoggingConfig configures loggy
type LoggingConfig struct {
	Level      string // debug, info, warn, error, none
	Format     string // text or json
	Output     string // stdout, stderr or a file path
	AddSource  bool
	TimeFormat string
}

// New returns an empty Config
func New() *Config {
	return &Config{}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks every section and fills in provider defaults
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return fmt.Errorf("LLM config: %w", err)
	}
	if err := c.validateOllama(); err != nil {
		return fmt.Errorf("Ollama config: %w", err)
	}
	if err := c.validateGemini(); err != nil {
		return fmt.Errorf("Gemini config: %w", err)
	}
	if err := c.validateChat(); err != nil {
		return fmt.Errorf("chat config: %w", err)
	}
	if err := c.validateStorage(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateLLM() error {
	switch c.DefaultLLMProvider {
	case "ollama", "claude", "gemini":
		return nil
	case "":
		return fmt.Errorf("default provider cannot be empty")
	default:
		return fmt.Errorf("unknown provider: %s", c.DefaultLLMProvider)
	}
}

func (c *Config) validateOllama() error {
	if c.Ollama.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Ollama.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Ollama.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Ollama.Temperature < 0 {
		return fmt.Errorf("temperature cannot be negative")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.APIKey == "" {
		return nil
	}
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if c.Gemini.APIVersion == "" {
		c.Gemini.APIVersion = "v1beta"
	}
	if c.Gemini.APIVersion != "v1" && c.Gemini.APIVersion != "v1beta" {
		return fmt.Errorf("invalid API version: %s (must be v1 or v1beta)", c.Gemini.APIVersion)
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-pro"
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = 60 * time.Second
	}
	if c.Gemini.MaxRetries <= 0 {
		c.Gemini.MaxRetries = 3
	}
	if c.Gemini.MaxTokens <= 0 {
		c.Gemini.MaxTokens = 8192
	}
	return nil
}

func (c *Config) validateChat() error {
	if c.Chat.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}
	if c.Chat.HistoryWindow < 0 {
		return fmt.Errorf("history window cannot be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage dir cannot be empty")
		}
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty")
		}
		if c.Storage.BusyTimeout <= 0 {
			return fmt.Errorf("busy timeout must be positive")
		}
	default:
		return fmt.Errorf("unknown backend: %s", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "none":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := time.ParseDuration(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnvString(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getTimeFormat converts a named layout such as "RFC3339" to its layout string
func getTimeFormat(name string) string {
	switch name {
	case "RFC3339":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "Kitchen":
		return time.Kitchen
	case "DateTime":
		return time.DateTime
	case "Stamp":
		return time.Stamp
	case "StampMilli":
		return time.StampMilli
	default:
		return name
	}
}
