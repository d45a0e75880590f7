package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/cache"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/database"
	"github.com/lapublica/platform-api/internal/events"
	"github.com/lapublica/platform-api/internal/http/handler"
	"github.com/lapublica/platform-api/internal/http/middleware"
	"github.com/lapublica/platform-api/internal/http/router"
	"github.com/lapublica/platform-api/internal/jobs"
	"github.com/lapublica/platform-api/internal/logger"
	"github.com/lapublica/platform-api/internal/mail"
	"github.com/lapublica/platform-api/internal/registry"
	"github.com/lapublica/platform-api/internal/repository"
	"github.com/lapublica/platform-api/internal/service"
	"github.com/lapublica/platform-api/internal/storage"
	"go.uber.org/zap"
)

// @title La Publica Platform API
// @version 1.0
// @description Multi-tenant CRM and marketplace platform API

// @contact.name API Support
// @contact.email support@lapublica.cat

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database with retry logic
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize attachment storage
	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize business registry connection (optional, read-only)
	// The app continues without it if not configured or unreachable
	var registryClient *registry.Client
	if cfg.Registry.Enabled {
		registryClient, err = registry.NewClient(&cfg.Registry, log)
		if err != nil {
			log.Warn("Business registry connection failed, continuing without it",
				zap.Error(err),
			)
		} else {
			log.Info("Business registry connected",
				zap.Int("max_open_conns", cfg.Registry.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.Registry.QueryTimeout),
			)
		}
	} else {
		log.Info("Business registry not configured, skipping")
	}

	// Initialize domain event publisher (optional)
	publisher := events.NewDisabledPublisher(log)
	if cfg.Events.Enabled {
		p, err := events.NewPublisher(cfg.Events.URL, cfg.Events.Exchange, log)
		if err != nil {
			log.Warn("Event broker connection failed, events will not be published",
				zap.Error(err),
			)
		} else {
			publisher = p
			log.Info("Event publisher connected", zap.String("exchange", cfg.Events.Exchange))
		}
	}

	// Initialize plan cache (optional)
	planCache := cache.NewDisabledPlanCache(log)
	if cfg.Cache.Enabled {
		c, err := cache.NewPlanCache(ctx, &cfg.Cache, log)
		if err != nil {
			log.Warn("Plan cache connection failed, plans will be read from the database",
				zap.Error(err),
			)
		} else {
			planCache = c
			log.Info("Plan cache connected", zap.String("addr", cfg.Cache.Addr))
		}
	}

	// Initialize mail sender
	mailer := mail.NewSender(&cfg.Mail, log)

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	planRepo := repository.NewPlanRepository(db)
	userRepo := repository.NewUserRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	transitionRepo := repository.NewStageTransitionRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	auditService := service.NewAuditService(auditLogRepo, log)
	limitService := service.NewLimitService(planRepo, offerRepo, userRepo, attachmentRepo, planCache, log)
	leadService := service.NewLeadService(leadRepo, notificationRepo, auditService, registryClient, publisher, log)
	pipelineService := service.NewPipelineService(leadRepo, companyRepo, transitionRepo, notificationRepo, auditService, publisher, service.PermissiveTransitionPolicy, log, db)
	companyService := service.NewCompanyService(companyRepo, planRepo, limitService, auditService, log)
	userService := service.NewUserService(userRepo, limitService, auditService, log)
	offerService := service.NewOfferService(offerRepo, limitService, auditService, publisher, log)
	couponService := service.NewCouponService(couponRepo, redemptionRepo, offerRepo, userRepo, notificationRepo, auditService, mailer, publisher, log, db)
	attachmentService := service.NewAttachmentService(attachmentRepo, offerRepo, limitService, auditService, fileStorage, log)
	notificationService := service.NewNotificationService(notificationRepo, log)
	dashboardService := service.NewDashboardService(leadRepo, offerRepo, couponRepo, redemptionRepo, log)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	tenantFilterMiddleware := middleware.NewTenantFilterMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	leadHandler := handler.NewLeadHandler(leadService, log)
	pipelineHandler := handler.NewPipelineHandler(pipelineService, log)
	companyHandler := handler.NewCompanyHandler(companyService, limitService, log)
	userHandler := handler.NewUserHandler(userService, log)
	offerHandler := handler.NewOfferHandler(offerService, log)
	couponHandler := handler.NewCouponHandler(couponService, log)
	attachmentHandler := handler.NewAttachmentHandler(attachmentService, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, log)
	auditHandler := handler.NewAuditHandler(auditService, log)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		registryClient,
		authMiddleware,
		tenantFilterMiddleware,
		rateLimiter,
		leadHandler,
		pipelineHandler,
		companyHandler,
		userHandler,
		offerHandler,
		couponHandler,
		attachmentHandler,
		notificationHandler,
		auditHandler,
		dashboardHandler,
	)

	// Initialize and start scheduler for background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)

		if err := jobs.RegisterExpiryJob(scheduler, couponService, offerService, log, cfg.Jobs.ExpirySchedule); err != nil {
			log.Error("Failed to register expiry job", zap.Error(err))
		}

		retention := time.Duration(cfg.Jobs.NotificationRetentionDays) * 24 * time.Hour
		if err := jobs.RegisterCleanupJob(scheduler, notificationService, retention, log, cfg.Jobs.CleanupSchedule); err != nil {
			log.Error("Failed to register cleanup job", zap.Error(err))
		}

		if registryClient != nil && registryClient.IsEnabled() && cfg.Registry.ImportTenantID != "" {
			tenantID, err := uuid.Parse(cfg.Registry.ImportTenantID)
			if err != nil {
				log.Error("Invalid registry import tenant ID, import job not scheduled",
					zap.String("tenant_id", cfg.Registry.ImportTenantID),
					zap.Error(err),
				)
			} else if err := jobs.RegisterRegistryImportJob(
				scheduler,
				leadService,
				tenantID,
				cfg.Registry.ImportBatchSize,
				log,
				cfg.Registry.ImportSchedule,
			); err != nil {
				log.Error("Failed to register registry import job", zap.Error(err))
			}
		}

		scheduler.Start()
		log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))
	} else {
		log.Info("Background jobs disabled")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if err := publisher.Close(); err != nil {
			log.Warn("Error closing event publisher", zap.Error(err))
		}
		if err := planCache.Close(); err != nil {
			log.Warn("Error closing plan cache", zap.Error(err))
		}
		if registryClient != nil {
			if err := registryClient.Close(); err != nil {
				log.Warn("Error closing registry connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
