package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	paymentApp "github.com/cassiomorais/payflow/internal/application/payment"
	webhookApp "github.com/cassiomorais/payflow/internal/application/webhook"
	"github.com/cassiomorais/payflow/internal/bootstrap"
	"github.com/cassiomorais/payflow/internal/domain/outbox"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	infraRedis "github.com/cassiomorais/payflow/internal/infrastructure/redis"
	"github.com/cassiomorais/payflow/internal/providers"
	"github.com/cassiomorais/payflow/internal/repository/postgres"
	"github.com/cassiomorais/payflow/internal/worker"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payflow-worker", "payflow_worker")
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
	processUC := paymentApp.NewProcessPaymentUseCase(
		paymentRepo, outboxRepo, txManager, providerFactory, machine)
	notifier := webhookApp.NewNotifier(
		webhookRepo, paymentRepo,
		app.Config.Webhook.MerchantURLs, app.Config.Webhook.DefaultURL,
		app.Config.Webhook.MaxRetries, app.Config.Webhook.InitialRetryDelay,
		app.Logger,
	)
	sender := webhookApp.NewSender(app.Config.Webhook.SendTimeout)

	// --- Stream plumbing ---
	producer := infraRedis.NewStreamProducer(app.Redis)
	streamConsumer := infraRedis.NewStreamConsumer(
		app.Redis,
		outbox.DefaultTopic,
		app.Config.Worker.ConsumerGroup,
		app.Config.InstanceID,
		app.Config.Worker.BatchSize,
		app.Config.Worker.BlockDuration,
	)
	if err := streamConsumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	lockTTL := app.Config.Payment.LockTTL
	newLock := func(key string) worker.Lock {
		return infraRedis.NewDistributedLock(app.Redis, key, lockTTL)
	}

	// --- Workers ---
	dispatcher := worker.NewOutboxDispatcher(
		txManager, outboxRepo, producer, app.Metrics, app.Logger,
		app.Config.Outbox.PollInterval, app.Config.Outbox.BatchSize)
	scheduler := worker.NewWebhookScheduler(
		webhookRepo, sender, app.Metrics, app.Logger,
		app.Config.Webhook.PollInterval, app.Config.Webhook.BatchSize,
		app.Config.Webhook.SendTimeout)
	consumer := worker.NewEventConsumer(
		streamConsumer, processUC, notifier, newLock, app.Metrics, app.Logger,
		outbox.DefaultTopic)
	sweeper := worker.NewIdempotencySweeper(
		idempotencyRepo, app.Metrics, app.Logger,
		app.Config.Idempotency.SweepInterval, app.Config.Idempotency.SweepBatchSize)

	app.Logger.Info().
		Str("stream", outbox.DefaultTopic).
		Str("group", app.Config.Worker.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gCtx) })
	g.Go(func() error { return scheduler.Run(gCtx) })
	g.Go(func() error { return consumer.Run(gCtx) })
	g.Go(func() error { return sweeper.Run(gCtx) })

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
