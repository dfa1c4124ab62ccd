// Package app wires storage, services and handlers together in dependency
// order.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/common"
	"github.com/ternarybob/docent/internal/handlers"
	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/services/chat"
	"github.com/ternarybob/docent/internal/services/chunker"
	"github.com/ternarybob/docent/internal/services/documents"
	"github.com/ternarybob/docent/internal/services/embeddings"
	"github.com/ternarybob/docent/internal/services/extract"
	"github.com/ternarybob/docent/internal/services/generator"
	"github.com/ternarybob/docent/internal/services/llm"
	"github.com/ternarybob/docent/internal/services/retrieval"
	"github.com/ternarybob/docent/internal/services/scheduler"
	"github.com/ternarybob/docent/internal/services/sessions"
	"github.com/ternarybob/docent/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// LLM providers in fallback order (may be empty)
	LLMFactory *llm.Factory
	Providers  []interfaces.LLMService

	// Core services
	EmbeddingService interfaces.EmbeddingService
	RetrievalEngine  *retrieval.Engine
	SessionService   *sessions.Service
	Generator        *generator.Generator
	DocumentService  interfaces.DocumentService
	ChatService      interfaces.ChatService
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	SearchHandler   *handlers.SearchHandler
	KVHandler       *handlers.KVHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if cfg.Processing.Enabled {
		if err := app.SchedulerService.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start processing sweep")
		}
	} else {
		logger.Debug().Msg("Processing sweep disabled by configuration")
	}

	logger.Info().
		Int("providers", len(app.Providers)).
		Str("default_provider", string(cfg.LLM.DefaultProvider)).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	if a.Config.Storage.Badger.ResetOnStartup && a.Config.IsProduction() {
		a.Logger.Warn().Msg("Ignoring reset_on_startup in production")
		a.Config.Storage.Badger.ResetOnStartup = false
	}

	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	kvStorage := a.StorageManager.KeyValueStorage()

	// Provider factory: missing API keys leave providers unavailable and the
	// deterministic fallbacks take over
	a.LLMFactory = llm.NewFactory(a.Config, kvStorage, a.Logger)
	a.Providers = a.LLMFactory.Order()
	if len(a.Providers) == 0 {
		a.Logger.Warn().Msg("No LLM providers available - fallback embedding and extractive answers only")
	}

	a.EmbeddingService = embeddings.NewService(a.LLMFactory.Embedder(), a.Config.LLM.EmbedDimension, a.Logger)
	a.RetrievalEngine = retrieval.NewEngine(
		a.StorageManager.DocumentStorage(),
		a.EmbeddingService,
		a.Config.Retrieval.TopK,
		a.Config.Retrieval.MinScore,
		a.Logger,
	)
	a.SessionService = sessions.NewService(
		a.StorageManager.SessionStorage(),
		a.Config.Chat.HistoryWindow,
		a.Logger,
	)
	a.Generator = generator.NewGenerator(a.Providers, a.Logger)

	documentService := documents.NewService(
		a.StorageManager.DocumentStorage(),
		a.StorageManager.SessionStorage(),
		extract.NewExtractor(a.Logger),
		chunker.NewChunker(a.Config.Processing.MaxChunkChars, a.Logger),
		a.EmbeddingService,
		a.RetrievalEngine,
		a.Providers,
		a.Logger,
	)
	a.DocumentService = documentService

	a.ChatService = chat.NewService(
		a.StorageManager.DocumentStorage(),
		a.SessionService,
		a.RetrievalEngine,
		a.Generator,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(
		a.StorageManager.DocumentStorage(),
		documentService,
		a.Config.Processing.Schedule,
		a.Config.Processing.Limit,
		a.Logger,
	)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.StorageManager, a.Providers, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(
		a.DocumentService,
		a.StorageManager.DocumentStorage(),
		a.Logger,
	)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.DocumentService, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KeyValueStorage(), a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.LLMFactory != nil {
		if err := a.LLMFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM clients")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
