package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lapublica/platform-api/internal/auth"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/database"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/lapublica/platform-api/internal/http/handler"
	"github.com/lapublica/platform-api/internal/http/middleware"
	"github.com/lapublica/platform-api/internal/metrics"
	"github.com/lapublica/platform-api/internal/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	cfg                    *config.Config
	logger                 *zap.Logger
	db                     *gorm.DB
	registryClient         *registry.Client
	authMiddleware         *auth.Middleware
	tenantFilterMiddleware *middleware.TenantFilterMiddleware
	rateLimiter            *middleware.RateLimiter
	leadHandler            *handler.LeadHandler
	pipelineHandler        *handler.PipelineHandler
	companyHandler         *handler.CompanyHandler
	userHandler            *handler.UserHandler
	offerHandler           *handler.OfferHandler
	couponHandler          *handler.CouponHandler
	attachmentHandler      *handler.AttachmentHandler
	notificationHandler    *handler.NotificationHandler
	auditHandler           *handler.AuditHandler
	dashboardHandler       *handler.DashboardHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	registryClient *registry.Client,
	authMiddleware *auth.Middleware,
	tenantFilterMiddleware *middleware.TenantFilterMiddleware,
	rateLimiter *middleware.RateLimiter,
	leadHandler *handler.LeadHandler,
	pipelineHandler *handler.PipelineHandler,
	companyHandler *handler.CompanyHandler,
	userHandler *handler.UserHandler,
	offerHandler *handler.OfferHandler,
	couponHandler *handler.CouponHandler,
	attachmentHandler *handler.AttachmentHandler,
	notificationHandler *handler.NotificationHandler,
	auditHandler *handler.AuditHandler,
	dashboardHandler *handler.DashboardHandler,
) *Router {
	return &Router{
		cfg:                    cfg,
		logger:                 logger,
		db:                     db,
		registryClient:         registryClient,
		authMiddleware:         authMiddleware,
		tenantFilterMiddleware: tenantFilterMiddleware,
		rateLimiter:            rateLimiter,
		leadHandler:            leadHandler,
		pipelineHandler:        pipelineHandler,
		companyHandler:         companyHandler,
		userHandler:            userHandler,
		offerHandler:           offerHandler,
		couponHandler:          couponHandler,
		attachmentHandler:      attachmentHandler,
		notificationHandler:    notificationHandler,
		auditHandler:           auditHandler,
		dashboardHandler:       dashboardHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Unmatched routes and wrong methods stay in the JSON envelope
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	// Liveness probe
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness probe with pool stats
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
			},
		})
	})

	// Combined readiness check
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{"status": "healthy"}
		}

		if rt.registryClient != nil && rt.registryClient.IsEnabled() {
			status := rt.registryClient.HealthCheck(r.Context())
			checks["registry"] = status
			// The registry is optional; a degraded registry does not fail readiness
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": map[bool]string{true: "healthy", false: "unhealthy"}[allHealthy],
			"checks": checks,
		})
	})

	// Prometheus metrics
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public marketplace (no auth required)
		r.Get("/marketplace/offers", rt.offerHandler.ListMarketplace)
		r.Get("/marketplace/offers/{id}", rt.offerHandler.GetMarketplace)

		// Authenticated marketplace actions
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Post("/marketplace/offers/{offerId}/claim", rt.couponHandler.Claim)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.tenantFilterMiddleware.Filter)
			r.Use(rt.rateLimiter.Limit)

			// Current user
			r.Get("/auth/me", rt.userHandler.Me)

			// Leads
			r.Route("/leads", func(r chi.Router) {
				r.Get("/", rt.leadHandler.List)
				r.Post("/", rt.leadHandler.Create)
				r.With(rt.authMiddleware.RequireAdmin).Post("/import", rt.leadHandler.ImportFromRegistry)
				r.Get("/{id}", rt.leadHandler.GetByID)
				r.Put("/{id}", rt.leadHandler.Update)
				r.Delete("/{id}", rt.leadHandler.Delete)
			})

			// Pipeline
			r.Route("/pipeline", func(r chi.Router) {
				r.Get("/board", rt.pipelineHandler.GetBoard)
				r.Get("/stages", rt.pipelineHandler.GetStages)
				r.Post("/{itemType}/{id}/transition", rt.pipelineHandler.Transition)
				r.Get("/{itemType}/{id}/history", rt.pipelineHandler.GetHistory)
			})

			// Companies and plans
			r.Route("/companies", func(r chi.Router) {
				r.With(rt.authMiddleware.RequireAdmin).Get("/", rt.companyHandler.List)
				r.With(rt.authMiddleware.RequireAdmin).Post("/", rt.companyHandler.Create)
				r.Get("/{id}", rt.companyHandler.GetByID)
				r.With(rt.authMiddleware.RequireAdmin).Put("/{id}/plan", rt.companyHandler.AssignPlan)
				r.Get("/{id}/limits", rt.companyHandler.GetLimits)
				r.Get("/{id}/limits/{kind}", rt.companyHandler.CheckLimit)
				r.Get("/{id}/members", rt.userHandler.ListMembers)
				r.Post("/{id}/members", rt.userHandler.AddMember)
			})
			r.Get("/plans", rt.companyHandler.ListPlans)

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/{id}", rt.userHandler.GetByID)
				r.Put("/{id}", rt.userHandler.Update)
			})

			// Offers
			r.Route("/offers", func(r chi.Router) {
				r.Get("/", rt.offerHandler.List)
				r.Post("/", rt.offerHandler.Create)
				r.Get("/{id}", rt.offerHandler.GetByID)
				r.Put("/{id}", rt.offerHandler.Update)
				r.Delete("/{id}", rt.offerHandler.Delete)
				r.Post("/{id}/activate", rt.offerHandler.Activate)
				r.Post("/{id}/feature", rt.offerHandler.SetFeatured)

				r.Get("/{offerId}/attachments", rt.attachmentHandler.ListByOffer)
				r.Post("/{offerId}/attachments", rt.attachmentHandler.Upload)
			})

			// Attachments
			r.Route("/attachments", func(r chi.Router) {
				r.Get("/{id}", rt.attachmentHandler.Download)
				r.Delete("/{id}", rt.attachmentHandler.Delete)
			})

			// Coupons and redemptions
			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", rt.couponHandler.List)
				r.Get("/verify/{code}", rt.couponHandler.Verify)
				r.Post("/redeem", rt.couponHandler.Redeem)
				r.Get("/{id}", rt.couponHandler.GetByID)
			})
			r.Route("/redemptions", func(r chi.Router) {
				r.Get("/", rt.couponHandler.ListRedemptions)
				r.Get("/{id}", rt.couponHandler.GetRedemption)
			})

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.notificationHandler.List)
				r.Get("/unread-count", rt.notificationHandler.CountUnread)
				r.Post("/read-all", rt.notificationHandler.MarkAllAsRead)
				r.Post("/{id}/read", rt.notificationHandler.MarkAsRead)
			})

			// Audit trail
			r.Route("/audit", func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRole(domain.RolePlatformAdmin, domain.RoleCompanyOwner))
				r.Get("/", rt.auditHandler.List)
				r.Get("/{entityType}/{entityId}", rt.auditHandler.GetByEntity)
			})

			// Dashboard
			r.Get("/dashboard/summary", rt.dashboardHandler.GetSummary)
		})
	})

	return r
}
