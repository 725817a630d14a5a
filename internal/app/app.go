// Package app provides the application initialization and lifecycle management
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/chat"
	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/extractor"
	"github.com/tildaslashalef/critiq/internal/llm"
	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/storage"
	"github.com/tildaslashalef/critiq/internal/workflow"
)

// ErrNoLLM is returned by commands that need a model when none is configured
var ErrNoLLM = errors.New("no LLM provider is available; check your configuration")

// Options are the command line overrides applied on top of the loaded configuration
type Options struct {
	ConfigDir  string
	ProjectDir string
	Provider   string
	Storage    string
}

// App represents the application instance with its dependencies
type App struct {
	Config    *config.Config
	Backend   storage.Backend
	LLM       llm.Client
	LLMType   llm.ClientType
	Review    *review.Service
	Chat      *chat.Service
	Runs      *workflow.RunStore
	Workflows *workflow.Runner
	Catalog   *workflow.Catalog
	Logger    *loggy.Logger

	closeStorage func() error
}

// New initializes a new application instance with all its dependencies
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := initConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	logger := loggy.GetGlobalLogger()

	logger.Info("application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
		"storage", cfg.Storage.Backend,
	)

	backend, closeStorage, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	client, clientType, err := initLLMClient(cfg, backend, logger)
	if err != nil {
		// Commands that need a model report ErrNoLLM themselves
		logger.Warn("failed to initialize LLM client", "error", err)
	} else {
		logger.Info("initialized LLM client", "type", clientType, "cache", cfg.Review.CacheEnabled)
	}

	a, err := Assemble(cfg, backend, client, logger)
	if err != nil {
		closeStorage()
		return nil, err
	}
	a.LLMType = clientType
	a.closeStorage = closeStorage

	logger.Info("application initialized successfully")
	return a, nil
}

// Assemble wires the services on top of an already opened backend and
// client. client may be nil.
func Assemble(cfg *config.Config, backend storage.Backend, client llm.Client, logger *loggy.Logger) (*App, error) {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}

	catalog, err := workflow.LoadCatalog(cfg.Workflow.DefinitionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	store := review.NewStore(backend,
		review.WithWorkspaceRoots(cfg.Review.WorkspaceRoots...),
		review.WithLogger(logger),
	)
	reviewService := review.NewService(store, client, cfg.Review, logger)
	chatService := chat.NewService(chat.NewHistoryStore(backend, cfg.Chat.MaxSessions, logger), client, cfg.Chat, logger)
	runs := workflow.NewRunStore(backend, cfg.Workflow.MaxRuns, logger)

	opts := []workflow.RunnerOption{}
	if len(cfg.Review.WorkspaceRoots) > 0 {
		opts = append(opts, workflow.WithWorkDir(cfg.Review.WorkspaceRoots[0]))
	}

	return &App{
		Config:    cfg,
		Backend:   backend,
		LLM:       client,
		Review:    reviewService,
		Chat:      chatService,
		Runs:      runs,
		Workflows: workflow.NewRunner(reviewService, client, runs, cfg.Workflow, logger, opts...),
		Catalog:   catalog,
		Logger:    logger,
	}, nil
}

// RequireLLM reports ErrNoLLM when no model client is configured
func (app *App) RequireLLM() error {
	if app.LLM == nil {
		return ErrNoLLM
	}
	return nil
}

// initConfig loads and sets up the application configuration
func initConfig(opts Options) (*config.Config, error) {
	cfg, err := config.LoadFromEnv(opts.ConfigDir, "", opts.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.Provider != "" {
		cfg.DefaultLLMProvider = opts.Provider
	}
	if opts.Storage != "" {
		cfg.Storage.Backend = opts.Storage
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initLLMClient picks the default provider and wraps it in the response
// cache when enabled. The cache lives in the storage backend so repeated
// commands can reuse replies.
func initLLMClient(cfg *config.Config, backend storage.Backend, logger *loggy.Logger) (llm.Client, llm.ClientType, error) {
	factory := llm.NewFactory(cfg, logger)
	client, clientType, err := factory.GetDefaultClient()
	if err != nil {
		return nil, "", err
	}
	if cfg.Review.CacheEnabled {
		client = llm.NewCachedClient(client, cfg.Review.CacheTTL,
			llm.WithCacheBackend(backend),
			llm.WithCacheFilter(cacheableReply),
			llm.WithCacheLogger(logger),
		)
	}
	return client, clientType, nil
}

// cacheableReply keeps a JSON-mode reply only when a review can be extracted
// from it, so a bad answer is asked again instead of replayed
func cacheableReply(req llm.ChatRequest, resp *llm.ChatResponse) bool {
	if !req.JSONOutput {
		return true
	}
	_, err := extractor.NewJSONExtractor(nil).ExtractReview(resp.Content)
	return err == nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	app.Logger.Info("shutting down application")

	if app.closeStorage != nil {
		if err := app.closeStorage(); err != nil {
			app.Logger.Error("error closing storage", "error", err)
			return err
		}
	}
	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
