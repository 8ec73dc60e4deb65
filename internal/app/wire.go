package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tradepost/marketplace/internal/auth"
	"github.com/tradepost/marketplace/internal/guard"
	"github.com/tradepost/marketplace/internal/handler"
	"github.com/tradepost/marketplace/internal/infra"
	"github.com/tradepost/marketplace/internal/ledger"
	"github.com/tradepost/marketplace/internal/provider"
	"github.com/tradepost/marketplace/internal/repository"
	"github.com/tradepost/marketplace/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool    *pgxpool.Pool
	JWTMgr  *auth.JWTManager
	Limiter guard.RateLimiter
	Logger  *slog.Logger
	Cfg     *infra.Config
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	jwtMgr := deps.JWTMgr
	logger := deps.Logger
	cfg := deps.Cfg

	// Repositories
	profileRepo := repository.NewProfileRepository()
	listingRepo := repository.NewListingRepository()
	paymentRepo := repository.NewPaymentRepository()
	milestoneRepo := repository.NewMilestoneRepository()
	eventRepo := repository.NewWebhookEventRepository()
	disputeRepo := repository.NewDisputeRepository()
	txRepo := repository.NewTransactionRepository()
	auditRepo := repository.NewAuditLogRepository()
	notificationRepo := repository.NewNotificationRepository()
	outboxRepo := repository.NewOutboxRepository()

	// Ledger engine
	ledgerEngine := ledger.NewEngine(profileRepo, paymentRepo, txRepo, disputeRepo, outboxRepo)

	// External providers
	stripeProvider := provider.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// Services
	effects := service.NewSideEffects(pool, auditRepo, notificationRepo, logger)
	paymentSvc := service.NewPaymentService(pool, stripeProvider, profileRepo, listingRepo,
		paymentRepo, milestoneRepo, effects, logger, cfg.PaymentsEnabled, cfg.PlatformFeeBps)
	webhookSvc := service.NewWebhookService(pool, stripeProvider, eventRepo, paymentRepo,
		milestoneRepo, disputeRepo, txRepo, ledgerEngine, effects, logger)
	disputeSvc := service.NewDisputeService(pool, stripeProvider, disputeRepo, paymentRepo,
		ledgerEngine, effects, logger)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	webhookHandler := handler.NewWebhookHandler(webhookSvc, logger)
	disputeHandler := handler.NewDisputeHandler(disputeSvc)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(pool))

	// Webhooks (no auth — raw body required for signature verification)
	r.Post("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	// Buyer-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateUser(jwtMgr))

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", paymentHandler.ListPayments)
			r.Get("/{id}", paymentHandler.GetPayment)

			// Intake endpoints carry admission control.
			r.Group(func(r chi.Router) {
				r.Use(handler.RateLimit(deps.Limiter, logger))
				r.Post("/intent", paymentHandler.CreateIntent)
				r.Post("/milestones", paymentHandler.CreateMilestone)
			})
		})
	})

	// Admin-authenticated routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateAdmin(jwtMgr))
		r.Use(auth.RequireRole("admin", "superadmin"))

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/{id}/refund", disputeHandler.RefundDispute)
			r.Post("/{id}/resolve", disputeHandler.ResolveDispute)
		})
	})

	return r
}
