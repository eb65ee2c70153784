package controller

import (
	"time"

	paymentApp "github.com/cassiomorais/payflow/internal/application/payment"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/domain/webhook"
	"github.com/cassiomorais/payflow/internal/infrastructure/config"
	"github.com/cassiomorais/payflow/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/payflow/internal/middleware"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool            *pgxpool.Pool
	RedisClient     *redis.Client
	PaymentRepo     payment.Repository
	WebhookRepo     webhook.Repository
	CreateUC        *paymentApp.CreatePaymentUseCase
	ProcessUC       *paymentApp.ProcessPaymentUseCase
	RefundUC        *paymentApp.RefundPaymentUseCase
	ProviderFactory *providers.Factory
	Metrics         *observability.Metrics
	ServerConfig    config.ServerConfig
	Logger          zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.ServerConfig.RateLimitPerMin > 0 {
		r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMin))
	}
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	paymentH := NewPaymentController(deps.CreateUC, deps.ProcessUC, deps.RefundUC, deps.PaymentRepo, deps.Logger)
	webhookH := NewWebhookController(deps.WebhookRepo)
	providerH := NewProviderController(deps.ProviderFactory)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Payments
		r.Post("/payments", paymentH.CreatePayment)
		r.Get("/payments", paymentH.ListPayments)
		r.Get("/payments/{id}", paymentH.GetPayment)
		r.Get("/payments/{id}/events", paymentH.GetEvents)
		r.Post("/payments/{id}/refund", paymentH.RefundPayment)
		r.Get("/payments/{id}/webhooks", webhookH.ListByPayment)

		// Webhook deliveries
		r.Get("/webhooks", webhookH.List)
		r.Get("/webhooks/{id}", webhookH.Get)

		// Provider circuit breakers
		r.Get("/providers", providerH.List)
	})

	return r
}
