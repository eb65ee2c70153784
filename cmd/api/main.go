package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	paymentApp "github.com/cassiomorais/payflow/internal/application/payment"
	"github.com/cassiomorais/payflow/internal/bootstrap"
	"github.com/cassiomorais/payflow/internal/controller"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/cassiomorais/payflow/internal/repository/postgres"
	"github.com/sony/gobreaker/v2"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "payflow-api", "payflow")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	webhookRepo := postgres.NewWebhookRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Providers ---
	providerFactory := providers.NewFactory(providers.BreakerSettings{
		FailureThreshold: uint32(app.Config.Payment.CircuitBreakerThreshold),
		Cooldown:         app.Config.Payment.CircuitBreakerCooldown,
		Window:           app.Config.Payment.CircuitBreakerWindow,
		OnStateChange: func(name string, from, to gobreaker.State) {
			app.Logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			app.Metrics.CircuitBreakerState.WithLabelValues(name).Set(providers.StateValue(to))
		},
	}, providers.DefaultMocks()...)

	// --- Use cases ---
	machine := payment.NewStateMachine(nil)
	createUC := paymentApp.NewCreatePaymentUseCase(
		paymentRepo, idempotencyRepo, outboxRepo, txManager, machine, app.Config.Idempotency.TTL)
	processUC := paymentApp.NewProcessPaymentUseCase(
		paymentRepo, outboxRepo, txManager, providerFactory, machine)
	refundUC := paymentApp.NewRefundPaymentUseCase(
		paymentRepo, outboxRepo, txManager, providerFactory, machine)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		PaymentRepo:     paymentRepo,
		WebhookRepo:     webhookRepo,
		CreateUC:        createUC,
		ProcessUC:       processUC,
		RefundUC:        refundUC,
		ProviderFactory: providerFactory,
		Metrics:         app.Metrics,
		ServerConfig:    app.Config.Server,
		Logger:          app.Logger,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
