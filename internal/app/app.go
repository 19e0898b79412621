package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendreel/internal/common"
	"github.com/ternarybob/trendreel/internal/handlers"
	"github.com/ternarybob/trendreel/internal/interfaces"
	"github.com/ternarybob/trendreel/internal/pipeline"
	"github.com/ternarybob/trendreel/internal/services/cooldown"
	"github.com/ternarybob/trendreel/internal/services/events"
	"github.com/ternarybob/trendreel/internal/services/llm"
	"github.com/ternarybob/trendreel/internal/services/runs"
	"github.com/ternarybob/trendreel/internal/services/scheduler"
	"github.com/ternarybob/trendreel/internal/services/status"
	"github.com/ternarybob/trendreel/internal/services/video"
	"github.com/ternarybob/trendreel/internal/services/youtube"
	"github.com/ternarybob/trendreel/internal/stages"
	"github.com/ternarybob/trendreel/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService  *events.Service
	NATSForwarder *events.NATSForwarder
	StatusService *status.Service

	// Capabilities
	ProviderFactory *llm.ProviderFactory
	Generator       interfaces.StructuredGenerator
	VideoGenerator  interfaces.VideoGenerator
	TrendSource     interfaces.TrendSource
	Publisher       interfaces.Publisher

	// Pipeline
	Orchestrator     *pipeline.Orchestrator
	RunService       *runs.Service
	CooldownStore    interfaces.CooldownStore
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	RunHandler       *handlers.RunHandler
	ChannelHandler   *handlers.ChannelHandler
	StatusHandler    *handlers.StatusHandler
	SchedulerHandler *handlers.SchedulerHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initEvents(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize events: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if cfg.Scheduler.Enabled {
		if err := app.SchedulerService.Start(cfg.Scheduler.Tick); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().
		Bool("live_trends", app.TrendSource != nil).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Bool("redis_cooldown", app.CooldownStore != nil).
		Bool("nats_events", app.NATSForwarder != nil).
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger) and seeds channels
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Bool("in_memory", a.Config.Storage.Badger.InMemory).
		Msg("Storage layer initialized")

	// Seed files are optional; a bad file is skipped, not fatal
	if err := a.StorageManager.LoadChannelsFromFiles(a.ctx, a.Config.Channels.Dir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load channels from files")
	}

	return nil
}

// initEvents creates the event bus and its subscribers
func (a *App) initEvents() error {
	a.EventService = events.NewService(a.Logger)

	if err := events.SubscribeLoggerToAllEvents(a.EventService, a.Logger); err != nil {
		return fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	a.StatusService = status.NewService(a.Logger)
	if err := a.StatusService.Subscribe(a.EventService); err != nil {
		return fmt.Errorf("failed to subscribe status service: %w", err)
	}

	if a.Config.NATS.Enabled {
		forwarder, err := events.NewNATSForwarder(a.Config.NATS.URL, a.Config.NATS.Subject, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		if err := forwarder.Attach(a.EventService); err != nil {
			forwarder.Close()
			return fmt.Errorf("failed to attach NATS forwarder: %w", err)
		}
		a.NATSForwarder = forwarder
		a.Logger.Info().
			Str("url", a.Config.NATS.URL).
			Str("subject", a.Config.NATS.Subject).
			Msg("Forwarding events to NATS")
	}

	return nil
}

// initServices builds the capabilities, the six stages and the services
// around them, in dependency order
func (a *App) initServices() error {
	cfg := a.Config

	// 1. Structured generation (Gemini or Claude)
	a.ProviderFactory = llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, a.Logger)
	a.Generator = llm.NewStructuredGenerator(a.ProviderFactory, "", a.Logger)

	// 2. Video generation; a missing key fails runs at render, not startup
	veo, err := video.NewVeoService(a.ctx, cfg.Gemini, cfg.Video, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Video generation unavailable, runs will fail at render")
		a.VideoGenerator = video.Unavailable{Err: err}
	} else {
		a.VideoGenerator = veo
	}

	// 3. Trend acquisition; without it stage 1 runs on mock data
	if cfg.Trends.Enabled {
		source, err := youtube.NewTrendSource(a.ctx, cfg.YouTube, cfg.Trends, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Live trends unavailable, using mock trend data")
		} else {
			a.TrendSource = source
		}
	}

	// 4. Publishing; the Gemini key authorises downloads of rendered videos
	geminiKey, _ := common.ResolveAPIKey("gemini_api_key", cfg.Gemini.APIKey)
	a.Publisher = youtube.NewPublisher(cfg.YouTube, geminiKey, a.Logger)

	// 5. Stages and orchestrator
	fallbacks, err := pipeline.PoliciesFromConfig(cfg.Pipeline.Fallbacks)
	if err != nil {
		return err
	}

	var scorer stages.Scorer = stages.HeuristicScorer{}
	if cfg.Pipeline.Scorer == "generative" {
		scorer = stages.GenerativeScorer{Generator: a.Generator}
	}
	weights := stages.Weights{
		Virality:       cfg.Pipeline.Weights.Virality,
		Feasibility:    cfg.Pipeline.Weights.Feasibility,
		TrendAlignment: cfg.Pipeline.Weights.TrendAlignment,
	}

	poller := stages.NewPoller(common.ParseDurationOr(cfg.Video.PollInterval, stages.DefaultPollInterval), cfg.Video.MaxPolls)
	clock := stages.SystemClock{}

	a.Orchestrator, err = pipeline.NewOrchestrator(pipeline.Stages{
		TrendSignals: stages.NewTrendSignalStage(a.Logger),
		Candidates:   stages.NewCandidateGenerationStage(a.Generator, a.Logger),
		Weighting:    stages.NewWeightingStage(scorer, weights, a.Logger),
		Composition:  stages.NewCompositionStage(a.Generator, a.Logger),
		Render: stages.NewRenderStage(a.VideoGenerator, poller, stages.RenderOptions{
			AspectRatio: cfg.Video.AspectRatio,
			Resolution:  cfg.Video.Resolution,
		}, a.Logger),
		Publish: stages.NewPublishStage(a.Publisher, clock, a.Logger),
	}, pipeline.Options{
		TrendSource: a.TrendSource,
		Fallbacks:   fallbacks,
		Observer:    runs.StageObserver(a.EventService),
		Clock:       clock,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	// 6. Run service
	a.RunService = runs.NewService(
		a.Orchestrator,
		a.StorageManager.ChannelStorage(),
		a.StorageManager.RunStorage(),
		a.EventService,
		common.ParseDurationOr(cfg.Pipeline.RunTimeout, 0),
		a.Logger,
	)

	// 7. Cooldown gate and time trigger
	if cfg.Redis.Enabled {
		store, err := cooldown.NewRedisStore(a.ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.CooldownStore = store
	}
	gate := cooldown.NewChecker(
		common.ParseDurationOr(cfg.Scheduler.Cooldown, 0),
		common.ParseDurationOr(cfg.Pipeline.RunTimeout, 0),
		a.CooldownStore,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(
		a.StorageManager.ChannelStorage(),
		a.RunService,
		gate,
		a.EventService,
		a.Logger,
	)

	return nil
}

// initHandlers creates the HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.RunHandler = handlers.NewRunHandler(a.RunService, a.Logger)
	a.ChannelHandler = handlers.NewChannelHandler(a.StorageManager.ChannelStorage(), a.EventService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	// Stop the scheduler first so no new runs start; this waits for
	// dispatched runs to return
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.ProviderFactory != nil {
		if err := a.ProviderFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	// Event service waits for in-flight handlers before the forwarder drains
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.NATSForwarder != nil {
		if err := a.NATSForwarder.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to drain NATS connection")
		}
	}

	if a.CooldownStore != nil {
		if err := a.CooldownStore.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close cooldown store")
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
