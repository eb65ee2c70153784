package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/payflow/internal/domain/idempotency"
	"github.com/cassiomorais/payflow/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// IdempotencySweeper deletes expired idempotency records in batches so
// the table does not grow without bound. Payments referenced by swept
// rows are untouched; only replay protection lapses after the TTL.
type IdempotencySweeper struct {
	repo      idempotency.Repository
	metrics   *observability.Metrics
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int
}

func NewIdempotencySweeper(
	repo idempotency.Repository,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	interval time.Duration,
	batchSize int,
) *IdempotencySweeper {
	return &IdempotencySweeper{
		repo:      repo,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run sweeps until the context is cancelled.
func (s *IdempotencySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := s.sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("idempotency sweep failed")
		}
	}
}

func (s *IdempotencySweeper) sweep(ctx context.Context) error {
	var total int64
	for {
		deleted, err := s.repo.DeleteExpired(ctx, s.batchSize)
		if err != nil {
			return err
		}
		total += deleted
		s.metrics.IdempotencyRowsDeleted.Add(float64(deleted))
		if deleted < int64(s.batchSize) {
			break
		}
	}
	if total > 0 {
		s.logger.Info().Int64("deleted", total).Msg("swept expired idempotency records")
	}
	return nil
}
