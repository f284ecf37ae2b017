package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/handlers"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
	"github.com/ternarybob/docgpt/internal/services/auth"
	"github.com/ternarybob/docgpt/internal/services/chat"
	"github.com/ternarybob/docgpt/internal/services/documents"
	"github.com/ternarybob/docgpt/internal/services/embeddings"
	"github.com/ternarybob/docgpt/internal/services/gc"
	"github.com/ternarybob/docgpt/internal/services/llm"
	"github.com/ternarybob/docgpt/internal/services/pdf"
	"github.com/ternarybob/docgpt/internal/services/prompt"
	"github.com/ternarybob/docgpt/internal/services/retrieval"
	"github.com/ternarybob/docgpt/internal/services/sessions"
	"github.com/ternarybob/docgpt/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Pipeline components, constructed once and injected everywhere
	Embedder    interfaces.Embedder
	VectorIndex interfaces.VectorIndex
	BlobStore   interfaces.BlobStore
	Retriever   interfaces.Retriever
	Generator   *llm.Generator

	// Services
	DocumentService interfaces.DocumentService
	SessionService  interfaces.SessionService
	ChatService     interfaces.ChatService
	AuthService     *auth.Service
	Collector       *gc.Collector

	// HTTP handlers
	HealthHandler   *handlers.HealthHandler
	AuthHandler     *handlers.AuthHandler
	DocumentHandler *handlers.DocumentHandler
	SessionHandler  *handlers.SessionHandler
	MessageHandler  *handlers.MessageHandler
	ChatWSHandler   *handlers.ChatWebSocketHandler

	collectorStarted bool
}

// Options selects the optional parts of the application
type Options struct {
	// WithGenerator builds the LLM provider; commands that never chat skip it
	WithGenerator bool
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger, opts Options) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initPipeline(ctx, opts); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	app.initServices()
	if opts.WithGenerator {
		app.initHandlers()
	}

	logger.Info().
		Str("embedder", app.Embedder.ModelInfo()).
		Str("vector_provider", string(cfg.Vector.Provider)).
		Bool("generator", app.Generator != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = manager

	index, err := storage.NewVectorIndex(a.Logger, a.Config, manager)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	a.VectorIndex = index

	blobs, err := storage.NewBlobStore(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}
	a.BlobStore = blobs

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Str("vector_provider", string(a.Config.Vector.Provider)).
		Msg("Storage layer initialized")
	return nil
}

// initPipeline builds the embedder, retriever and generator
func (a *App) initPipeline(ctx context.Context, opts Options) error {
	embedder, err := embeddings.NewEmbedder(ctx, &a.Config.Embedding, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	a.Embedder = embedder

	// Load the stored collection dimension so mismatches are caught before the first query
	reset, err := a.VectorIndex.EnsureCollection(ctx, embedder.Dimension(), models.DistanceCosine)
	if err != nil {
		return fmt.Errorf("failed to prepare vector collection: %w", err)
	}
	if reset {
		a.Logger.Warn().
			Int("dimension", embedder.Dimension()).
			Msg("Vector collection was recreated; run 'docgpt reindex' to rebuild document vectors")
	}

	a.Retriever = retrieval.NewRetriever(embedder, a.VectorIndex, a.Logger)

	if opts.WithGenerator {
		provider, err := llm.NewProvider(ctx, a.Config, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create LLM provider: %w", err)
		}
		retry := llm.NewDefaultRetryConfig()
		retry.MaxRetries = a.Config.Generation.MaxRetries
		a.Generator = llm.NewGenerator(provider, &a.Config.Generation, a.Logger, llm.WithRetryConfig(retry))
	}
	return nil
}

func (a *App) initServices() {
	a.DocumentService = documents.NewService(
		a.StorageManager,
		a.BlobStore,
		pdf.NewExtractor(a.Logger),
		a.Embedder,
		a.VectorIndex,
		a.Retriever,
		a.Config,
		a.Logger,
	)

	a.SessionService = sessions.NewService(
		a.DocumentService,
		a.StorageManager,
		pdf.NewTranscript(a.Logger),
		a.Logger,
	)

	if a.Generator != nil {
		a.ChatService = chat.NewService(
			a.SessionService,
			a.StorageManager,
			a.Retriever,
			prompt.NewAssembler(a.Config.RAG.HistoryWindow),
			a.Generator,
			&a.Config.RAG,
			a.Logger,
		)
	}

	a.AuthService = auth.NewService(
		auth.NewStaticTokens(&a.Config.Auth),
		a.StorageManager.UserStorage(),
		a.Logger,
	)

	a.Collector = gc.NewCollector(a.StorageManager.OrphanStorage(), a.VectorIndex, &a.Config.GC, a.Logger)
}

func (a *App) initHandlers() {
	a.HealthHandler = handlers.NewHealthHandler(a.Embedder, a.VectorIndex, a.Generator, a.Config.Vector)
	a.AuthHandler = handlers.NewAuthHandler()
	a.DocumentHandler = handlers.NewDocumentHandler(a.DocumentService, a.Config.Upload, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.SessionService, a.ChatService, a.Logger)
	a.MessageHandler = handlers.NewMessageHandler(a.ChatService, a.Logger)
	a.ChatWSHandler = handlers.NewChatWebSocketHandler(a.ChatService, a.Logger)
}

// StartBackground starts the scheduled orphan sweep when enabled
func (a *App) StartBackground() error {
	if !a.Config.GC.Enabled {
		return nil
	}
	if err := a.Collector.Start(); err != nil {
		return err
	}
	a.collectorStarted = true
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.collectorStarted {
		a.Collector.Stop()
	}

	if a.Generator != nil {
		if err := a.Generator.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close generator")
		}
	}

	if a.VectorIndex != nil {
		if err := a.VectorIndex.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close vector index")
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
