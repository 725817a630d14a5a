package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from the environment.
//
// A .env file is read first: ENV_FILE_PATH if set, otherwise configFilePath
// (default <configDir>/.env), falling back to ./.env. Real environment
// variables win over .env values. projectDir is the root of the reviewed
// project and hosts the .critiq storage directory.
func LoadFromEnv(configDir, configFilePath, projectDir string) (*Config, error) {
	cfg := New()

	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(home, ".critiq")
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	cfg.configDir = configDir

	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		projectDir = wd
	}

	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}
	if envFile := getEnvString("ENV_FILE_PATH", ""); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(configFilePath); err != nil {
		_ = godotenv.Load()
	}

	cfg.DefaultLLMProvider = getEnvString("CRITIQ_LLM_DEFAULT_PROVIDER", "ollama")

	cfg.Ollama = OllamaConfig{
		Endpoint:            getEnvString("CRITIQ_OLLAMA_ENDPOINT", "http://localhost:11434"),
		Model:               getEnvString("CRITIQ_OLLAMA_MODEL", "gemma3"),
		Timeout:             getEnvDuration("CRITIQ_OLLAMA_TIMEOUT", 600*time.Second),
		MaxTokens:           getEnvInt("CRITIQ_OLLAMA_MAX_TOKENS", 4096),
		Temperature:         getEnvFloat("CRITIQ_OLLAMA_TEMPERATURE", 0.2),
		MaxIdleConns:        getEnvInt("CRITIQ_OLLAMA_MAX_IDLE_CONNS", 100),
		MaxIdleConnsPerHost: getEnvInt("CRITIQ_OLLAMA_MAX_IDLE_CONNS_PER_HOST", 100),
		IdleConnTimeout:     getEnvDuration("CRITIQ_OLLAMA_IDLE_CONN_TIMEOUT", 120*time.Second),
		RequestsPerMinute:   getEnvInt("CRITIQ_OLLAMA_REQUESTS_PER_MINUTE", 0),
		BurstLimit:          getEnvInt("CRITIQ_OLLAMA_BURST_LIMIT", 1),
	}

	cfg.Claude = ClaudeConfig{
		APIKey:            getEnvString("CRITIQ_CLAUDE_API_KEY", ""),
		BaseURL:           getEnvString("CRITIQ_CLAUDE_BASE_URL", "https://api.anthropic.com"),
		APIVersion:        getEnvString("CRITIQ_CLAUDE_API_VERSION", "2023-06-01"),
		Model:             getEnvString("CRITIQ_CLAUDE_MODEL", "claude-3-7-sonnet-20250219"),
		Timeout:           getEnvDuration("CRITIQ_CLAUDE_TIMEOUT", 120*time.Second),
		MaxRetries:        getEnvInt("CRITIQ_CLAUDE_MAX_RETRIES", 3),
		MaxTokens:         getEnvInt("CRITIQ_CLAUDE_MAX_TOKENS", 4096),
		Temperature:       getEnvFloat("CRITIQ_CLAUDE_TEMPERATURE", 0.1),
		RequestsPerMinute: getEnvInt("CRITIQ_CLAUDE_REQUESTS_PER_MINUTE", 50),
		BurstLimit:        getEnvInt("CRITIQ_CLAUDE_BURST_LIMIT", 5),
	}

	cfg.Gemini = GeminiConfig{
		APIKey:            getEnvString("CRITIQ_GEMINI_API_KEY", ""),
		BaseURL:           getEnvString("CRITIQ_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		APIVersion:        getEnvString("CRITIQ_GEMINI_API_VERSION", "v1beta"),
		Model:             getEnvString("CRITIQ_GEMINI_MODEL", "gemini-2.5-pro"),
		Timeout:           getEnvDuration("CRITIQ_GEMINI_TIMEOUT", 120*time.Second),
		MaxRetries:        getEnvInt("CRITIQ_GEMINI_MAX_RETRIES", 3),
		MaxTokens:         getEnvInt("CRITIQ_GEMINI_MAX_TOKENS", 8192),
		Temperature:       getEnvFloat("CRITIQ_GEMINI_TEMPERATURE", 0.1),
		RequestsPerMinute: getEnvInt("CRITIQ_GEMINI_REQUESTS_PER_MINUTE", 60),
		BurstLimit:        getEnvInt("CRITIQ_GEMINI_BURST_LIMIT", 5),
	}

	roots := getEnvList("CRITIQ_REVIEW_WORKSPACE_ROOTS")
	if len(roots) == 0 {
		roots = []string{projectDir}
	}
	cfg.Review = ReviewConfig{
		MaxFileBytes:   getEnvInt64("CRITIQ_REVIEW_MAX_FILE_BYTES", 256*1024),
		CacheEnabled:   getEnvBool("CRITIQ_REVIEW_CACHE_ENABLED", true),
		CacheTTL:       getEnvDuration("CRITIQ_REVIEW_CACHE_TTL", 30*time.Minute),
		WorkspaceRoots: roots,
	}

	cfg.Chat = ChatConfig{
		MaxSessions:   getEnvInt("CRITIQ_CHAT_MAX_SESSIONS", 100),
		HistoryWindow: getEnvInt("CRITIQ_CHAT_HISTORY_WINDOW", 20),
		SystemPrompt: getEnvString("CRITIQ_CHAT_SYSTEM_PROMPT",
			"You are a senior software engineer helping with code questions. Answer concisely and use markdown code blocks for code."),
	}

	cfg.Workflow = WorkflowConfig{
		DefinitionsPath: getEnvString("CRITIQ_WORKFLOW_FILE", ""),
		TestTimeout:     getEnvDuration("CRITIQ_WORKFLOW_TEST_TIMEOUT", 5*time.Minute),
		MaxRuns:         getEnvInt("CRITIQ_WORKFLOW_MAX_RUNS", 50),
	}

	cfg.Storage = StorageConfig{
		Backend:     getEnvString("CRITIQ_STORAGE_BACKEND", "file"),
		Dir:         getEnvString("CRITIQ_STORAGE_DIR", filepath.Join(projectDir, ".critiq")),
		DBPath:      getEnvString("CRITIQ_DB_PATH", filepath.Join(projectDir, ".critiq", "critiq.db")),
		JournalMode: getEnvString("CRITIQ_DB_JOURNAL_MODE", "WAL"),
		BusyTimeout: getEnvInt("CRITIQ_DB_BUSY_TIMEOUT", 5000),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("CRITIQ_LOG_LEVEL", "info"),
		Format:     getEnvString("CRITIQ_LOG_FORMAT", "text"),
		Output:     getEnvString("CRITIQ_LOG_OUTPUT", filepath.Join(configDir, "critiq.log")),
		AddSource:  getEnvBool("CRITIQ_LOG_ADD_SOURCE", false),
		TimeFormat: getTimeFormat(getEnvString("CRITIQ_LOG_TIME_FORMAT", "RFC3339")),
	}

	return cfg, cfg.Validate()
}
