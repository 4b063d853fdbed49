// -----------------------------------------------------------------------
// App - Dependency wiring and lifecycle
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/merx/internal/common"
	"github.com/ternarybob/merx/internal/handlers"
	"github.com/ternarybob/merx/internal/interfaces"
	"github.com/ternarybob/merx/internal/models"
	"github.com/ternarybob/merx/internal/scraper"
	"github.com/ternarybob/merx/internal/services/actions"
	"github.com/ternarybob/merx/internal/services/auth"
	"github.com/ternarybob/merx/internal/services/chat"
	"github.com/ternarybob/merx/internal/services/conversations"
	"github.com/ternarybob/merx/internal/services/dispatcher"
	"github.com/ternarybob/merx/internal/services/events"
	jobsvc "github.com/ternarybob/merx/internal/services/jobs"
	"github.com/ternarybob/merx/internal/services/llm"
	"github.com/ternarybob/merx/internal/services/products"
	"github.com/ternarybob/merx/internal/services/push"
	"github.com/ternarybob/merx/internal/services/search"
	"github.com/ternarybob/merx/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Core services
	EventService        interfaces.EventService
	CompletionService   interfaces.CompletionService
	PushService         interfaces.PushService
	AuthService         interfaces.Authenticator
	ConversationService interfaces.ConversationService
	ProductService      interfaces.ProductService
	SearchService       interfaces.SearchService
	JobService          *jobsvc.Service
	JobSweeper          *jobsvc.Sweeper
	ChatService         interfaces.ChatService

	// HTTP handlers
	ChatWSHandler       *handlers.ChatWSHandler
	ScrapeHandler       *handlers.ScrapeHandler
	ChatHandler         *handlers.ChatHandler
	ConversationHandler *handlers.ConversationHandler
	ProductHandler      *handlers.ProductHandler
	JobHandler          *handlers.JobHandler
	StatusHandler       *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)
	app.CompletionService = llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, logger)
	app.PushService = push.NewRegistry(logger, push.WithRateLimit(rate.Limit(cfg.Server.PushRatePerSec), cfg.Server.PushBurst))
	app.AuthService = auth.NewService(&cfg.Auth, logger)

	app.ConversationService = conversations.NewService(storageManager.Conversations(), logger)
	app.ProductService = products.NewService(
		storageManager.Products(),
		storageManager.ProductErrors(),
		app.CompletionService,
		logger,
	)
	app.SearchService = search.NewService(storageManager.Products(), app.CompletionService, logger)

	scraperClient := scraper.NewClient(&cfg.Scraper, logger)
	app.JobService = jobsvc.NewService(
		storageManager.Jobs(),
		app.ProductService,
		app.ConversationService,
		app.CompletionService,
		scraperClient,
		app.EventService,
		jobsvc.Settings{
			AffiliateTag: cfg.Scraper.AffiliateTag,
			BatchSize:    cfg.Search.BatchSize,
			MaxValidated: cfg.Search.MaxValidated,
		},
		logger,
	)
	app.JobSweeper = jobsvc.NewSweeper(storageManager.Jobs(), cfg.PendingJobTTL(), logger)

	intentDispatcher := dispatcher.NewService(app.CompletionService, cfg.LLM.ClassifierModel, logger)
	actionService := actions.NewService(
		app.ProductService,
		app.SearchService,
		app.CompletionService,
		app.JobService,
		actions.Settings{
			SearchLimit:     cfg.Search.Limit,
			SimilarityLimit: cfg.Search.SimilarityLimit,
		},
		logger,
	)
	app.ChatService = chat.NewService(
		app.ConversationService,
		intentDispatcher,
		actionService,
		logger,
	)

	// Async job results reach connected clients through the event bus
	if err := app.subscribePushDelivery(); err != nil {
		return nil, fmt.Errorf("failed to subscribe push delivery: %w", err)
	}

	app.ChatWSHandler = handlers.NewChatWSHandler(app.AuthService, app.ChatService, app.JobService, app.PushService, logger)
	app.ScrapeHandler = handlers.NewScrapeHandler(app.JobService, logger)
	app.ChatHandler = handlers.NewChatHandler(app.ChatService, app.JobService, logger)
	app.ConversationHandler = handlers.NewConversationHandler(app.ConversationService, logger)
	app.ProductHandler = handlers.NewProductHandler(
		storageManager.Products(),
		storageManager.ProductErrors(),
		app.ProductService,
		app.SearchService,
		app.CompletionService,
		logger,
	)
	app.JobHandler = handlers.NewJobHandler(storageManager.Jobs(), app.JobService, logger)
	app.StatusHandler = handlers.NewStatusHandler(storageManager.Jobs(), logger)

	if err := app.JobSweeper.Start(cfg.Jobs.SweepSchedule); err != nil {
		return nil, fmt.Errorf("failed to start job sweeper: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("default_provider", string(cfg.LLM.DefaultProvider)).
		Msg("Application initialized")

	return app, nil
}

// subscribePushDelivery forwards appended assistant messages to the owning
// user's live connection. Delivery is best-effort; the conversation store is
// the durable record.
func (a *App) subscribePushDelivery() error {
	return a.EventService.Subscribe(interfaces.EventMessageAppended, func(_ context.Context, event interfaces.Event) error {
		appended, ok := event.Payload.(*models.MessageAppended)
		if !ok || appended == nil {
			return fmt.Errorf("unexpected payload type for %s", event.Type)
		}
		a.PushService.Send(appended.UserID, handlers.PushMessageFrame(appended.UserID, appended.Message))
		return nil
	})
}

// Close shuts down services in reverse dependency order
func (a *App) Close() error {
	if a.JobSweeper != nil {
		a.JobSweeper.Stop()
	}
	if a.PushService != nil {
		a.PushService.Close()
	}
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}
	if a.CompletionService != nil {
		if err := a.CompletionService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close completion service")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
