// -----------------------------------------------------------------------
// Last Modified: Saturday, 29th August 2026 5:35:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/fabula/internal/common"
	"github.com/ternarybob/fabula/internal/handlers"
	"github.com/ternarybob/fabula/internal/interfaces"
	"github.com/ternarybob/fabula/internal/services/characters"
	"github.com/ternarybob/fabula/internal/services/chat"
	"github.com/ternarybob/fabula/internal/services/chunker"
	"github.com/ternarybob/fabula/internal/services/embeddings"
	"github.com/ternarybob/fabula/internal/services/llm"
	"github.com/ternarybob/fabula/internal/services/manuscripts"
	"github.com/ternarybob/fabula/internal/services/retrieval"
	"github.com/ternarybob/fabula/internal/services/scheduler"
	"github.com/ternarybob/fabula/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Pipeline services
	LLMService        interfaces.LLMService
	EmbeddingService  interfaces.EmbeddingService
	ManuscriptService interfaces.ManuscriptService
	RetrievalService  interfaces.RetrievalService
	CharacterService  interfaces.CharacterService
	ChatService       interfaces.ChatService
	SchedulerService  *scheduler.Service

	// HTTP handlers
	ManuscriptHandler *handlers.ManuscriptHandler
	CharacterHandler  *handlers.CharacterHandler
	ChatHandler       *handlers.ChatHandler
	StatusHandler     *handlers.StatusHandler
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

	logger.Info().Msg("Application initialized")
	return app, nil
}

func (a *App) initStorage() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = storageManager
	return nil
}

func (a *App) initServices() error {
	llmService, err := llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.LLMService = llmService

	a.EmbeddingService = embeddings.NewService(llmService, a.Logger)

	a.ManuscriptService = manuscripts.NewService(
		a.StorageManager,
		a.EmbeddingService,
		chunker.NewService(),
		a.Config,
		a.Logger,
	)

	a.RetrievalService = retrieval.NewService(
		a.StorageManager,
		a.EmbeddingService,
		a.Config,
		a.Logger,
	)

	a.CharacterService = characters.NewService(a.StorageManager, a.LLMService, a.Config, a.Logger)

	a.ChatService = chat.NewService(
		a.CharacterService,
		a.RetrievalService,
		a.LLMService,
		a.Config,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(
		a.ManuscriptService,
		a.StorageManager,
		&a.Config.Processing,
		a.Logger,
	)

	return nil
}

func (a *App) initHandlers() {
	a.ManuscriptHandler = handlers.NewManuscriptHandler(a.ManuscriptService, a.RetrievalService, a.Logger)
	a.CharacterHandler = handlers.NewCharacterHandler(a.CharacterService, a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StorageManager, a.LLMService, a.Logger)
}

// StartBackground starts the background resume scheduler
func (a *App) StartBackground() error {
	return a.SchedulerService.Start()
}

// Close releases all application resources in reverse dependency order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		a.SchedulerService.Stop()
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
