package main

import (
	"github.com/teamforge/teamforge/internal/config"
	"github.com/teamforge/teamforge/internal/handlers"
	"github.com/teamforge/teamforge/internal/models"
	"github.com/teamforge/teamforge/internal/services"
	"github.com/teamforge/teamforge/internal/utils"
	"github.com/teamforge/teamforge/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg                 *config.Config
	stream              *services.NotificationStream
	notificationService *services.NotificationService
	digestService       *services.DigestService
	notifyQueue         services.NotifyQueue
	worker              *services.Worker
	authHandler         *handlers.AuthHandler
	notificationHandler *handlers.NotificationHandler
	healthHandler       *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	// Initialize system logger and its retention cleanup
	services.InitSystemLogger(models.GetDB())
	services.StartLogCleanupScheduler(models.GetDB())

	// Notification pipeline: stream for live SSE pushes, service for durable
	// rows and IM webhooks, queue to decouple dispatch from request handling
	stream := services.NewNotificationStream()
	notificationService := services.NewNotificationService(models.GetDB(), &cfg.Notifier, stream)

	notifyQueue := services.InitNotifyQueue(cfg)
	if syncQueue, ok := notifyQueue.(*services.SyncNotifyQueue); ok {
		syncQueue.SetProcessor(notificationService.Deliver)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notificationService.Deliver)
			worker.Start()
		}
	}

	// Daily open-task digest
	digestService := services.NewDigestService(models.GetDB(), &cfg.Digest, services.NewHolidayService())
	digestService.StartScheduler()

	return &appServices{
		cfg:                 cfg,
		stream:              stream,
		notificationService: notificationService,
		digestService:       digestService,
		notifyQueue:         notifyQueue,
		worker:              worker,
		authHandler:         handlers.NewAuthHandler(models.GetDB(), cfg),
		notificationHandler: handlers.NewNotificationHandler(notificationService, stream),
		healthHandler:       handlers.NewHealthHandler(stream),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.digestService.StopScheduler()

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.notifyQueue != nil {
		s.notifyQueue.Close()
	}
	logger.Info().Msg("All background services stopped")
}
