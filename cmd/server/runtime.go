package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MarkoPoloResearchLab/leadloop/internal/assistant"
	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/features"
	"github.com/MarkoPoloResearchLab/leadloop/internal/httpapi"
	"github.com/MarkoPoloResearchLab/leadloop/internal/identity"
	"github.com/MarkoPoloResearchLab/leadloop/internal/intake"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
	"github.com/MarkoPoloResearchLab/leadloop/internal/notifications"
	"github.com/MarkoPoloResearchLab/leadloop/internal/signals"
	"github.com/MarkoPoloResearchLab/leadloop/internal/storage"
	"github.com/MarkoPoloResearchLab/leadloop/internal/task"
)

const (
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 10 * time.Second
	reminderInterval      = 5 * time.Minute
	emailQueueInterval    = time.Minute
	documentWatchInterval = 5 * time.Second
)

// serverRuntime owns every long-lived component of one process.
type serverRuntime struct {
	config       ServerConfig
	logger       *zap.Logger
	bus          *signals.Bus
	documents    storage.DocumentStore
	flags        *features.Store
	log          *notifications.Log
	guard        *identity.Guard
	registry     *clients.Registry
	generator    *assistant.Generator
	controller   *intake.Controller
	emailHistory *notifications.Queue[model.EmailHistoryEntry]
	watcher      *signals.Watcher
	ingestion    *task.Scheduler
	schedulers   []*task.Scheduler
}

func newServerRuntime(ctx context.Context, config ServerConfig, documents storage.DocumentStore, logger *zap.Logger) (*serverRuntime, error) {
	constraint, constraintErr := identity.LoadConstraint(config.IdentityConfigPath)
	if constraintErr != nil {
		return nil, constraintErr
	}

	bus := signals.NewBus()
	flags := features.NewStore(ctx, documents, bus, logger)
	log := notifications.NewLog(documents, logger)
	guard := identity.NewGuard(constraint, documents, bus, logger)
	registry := clients.NewRegistry(documents, log, bus, logger, clients.WithIngestWindow(config.IngestWindow))
	generator := assistant.NewGenerator(newCompleter(config, logger), config.LLMTimeout, logger)
	controller := intake.NewController(documents, flags, guard, generator, log, bus, logger)

	runtime := &serverRuntime{
		config:       config,
		logger:       logger,
		bus:          bus,
		documents:    documents,
		flags:        flags,
		log:          log,
		guard:        guard,
		registry:     registry,
		generator:    generator,
		controller:   controller,
		emailHistory: notifications.NewEmailHistory(documents, logger),
		watcher:      signals.NewWatcher(documents, bus, logger),
	}
	runtime.configureWorkers()
	return runtime, nil
}

func newCompleter(config ServerConfig, logger *zap.Logger) assistant.Completer {
	if config.LLMAPIKey == "" {
		logger.Info("llm_disabled", zap.String("reason", "missing api key"))
		return nil
	}
	completer, completerErr := assistant.NewAnthropicCompleter(assistant.AnthropicConfig{
		APIKey: config.LLMAPIKey,
		Model:  config.LLMModel,
	})
	if completerErr != nil {
		logger.Warn("llm_disabled", zap.Error(completerErr))
		return nil
	}
	return completer
}

func (runtime *serverRuntime) configureWorkers() {
	logger := runtime.logger
	runtime.ingestion = task.NewScheduler(
		runtime.config.IngestInterval,
		task.JobRunner(task.NewIngestionJob(runtime.registry, logger), logger),
		task.WithSchedulerLogger(logger),
		task.WithImmediateRun(),
	)
	reminders := task.NewScheduler(
		reminderInterval,
		task.JobRunner(task.NewReminderJob(runtime.registry, nil, logger), logger),
		task.WithSchedulerLogger(logger),
		task.WithImmediateRun(),
	)
	emailQueue := task.NewScheduler(
		emailQueueInterval,
		task.JobRunner(task.NewEmailQueueJob(task.EmailQueueConfig{
			Queue:    runtime.registry.EmailQueue(),
			History:  runtime.emailHistory,
			Composer: runtime.generator,
			Sender:   notifications.NewLoggingEmailSender(logger),
			Flags:    runtime.flags,
		}, logger), logger),
		task.WithSchedulerLogger(logger),
	)
	documentWatch := task.NewScheduler(
		documentWatchInterval,
		task.JobRunner(task.NewFuncJob(task.JobDocuments, runtime.watcher.Poll), logger),
		task.WithSchedulerLogger(logger),
		task.WithImmediateRun(),
	)

	runtime.watcher.Watch(storage.KeyFeaturesConfig, func(ctx context.Context, _ storage.DocumentKey) {
		runtime.flags.Reload(ctx)
	})
	runtime.watcher.Watch(storage.KeyNotificationLog, func(context.Context, storage.DocumentKey) {
		runtime.ingestion.Trigger()
	})
	for _, key := range []storage.DocumentKey{storage.KeyPendingAuthorizations, storage.KeyVisualConfig, storage.KeyPublishedProperties} {
		runtime.watcher.Watch(key, func(context.Context, storage.DocumentKey) {})
	}

	runtime.schedulers = []*task.Scheduler{documentWatch}
	if runtime.config.ServeMode.RunsWorkers() {
		runtime.schedulers = append(runtime.schedulers, runtime.ingestion, reminders, emailQueue)
	}
}

// Run serves until ctx ends, then drains the HTTP server and stops every worker.
func (runtime *serverRuntime) Run(ctx context.Context) error {
	defer runtime.bus.Close()
	group, groupContext := errgroup.WithContext(ctx)

	for _, scheduler := range runtime.schedulers {
		scheduler.Start(groupContext)
	}
	if runtime.config.ServeMode.RunsWorkers() {
		runtime.bus.On(groupContext, func(signals.Signal) {
			runtime.ingestion.Trigger()
		}, signals.TypeLeadSubmitted)
	}

	if runtime.config.ServeMode.ServesAPI() {
		httpServer := &http.Server{
			Addr:              runtime.config.ApplicationAddress,
			Handler:           runtime.Router(),
			ReadHeaderTimeout: readHeaderTimeout,
		}
		group.Go(func() error {
			runtime.logger.Info("listening", zap.String("addr", runtime.config.ApplicationAddress))
			if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				return serveErr
			}
			return nil
		})
		group.Go(func() error {
			<-groupContext.Done()
			shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownContext)
		})
	}

	group.Go(func() error {
		<-groupContext.Done()
		for _, scheduler := range runtime.schedulers {
			scheduler.Stop()
		}
		runtime.logger.Info("workers_stopped")
		return nil
	})

	return group.Wait()
}

// Router assembles the HTTP surface.
func (runtime *serverRuntime) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(runtime.logger))
	router.Use(httpapi.RequestMetrics())

	registerPublicRoutes(router, httpapi.NewIntakeHandlers(runtime.controller, runtime.logger), runtime.config.PublicOrigins)
	registerOperatorRoutes(
		router,
		httpapi.NewOperatorAuth(runtime.logger, runtime.config.OperatorAccessCode, runtime.config.SessionSecret),
		httpapi.NewAdminHandlers(httpapi.AdminDependencies{
			Flags:        runtime.flags,
			Log:          runtime.log,
			Registry:     runtime.registry,
			Guard:        runtime.guard,
			Documents:    runtime.documents,
			EmailHistory: runtime.emailHistory,
		}, runtime.logger),
		httpapi.NewEventStream(runtime.bus, runtime.logger),
	)
	registerOperationalRoutes(router)
	return router
}
