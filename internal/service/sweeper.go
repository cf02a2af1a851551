package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/queue"
	"github.com/alimkdd/retry-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepLimit    = 100

	// sweepGrace keeps the sweeper clear of messages the delay queue is
	// about to deliver on its own.
	sweepGrace = 30 * time.Second
)

// RetrySweeper re-enqueues scheduled retries whose broker message was lost,
// for example when the process died between persisting the retry entry and
// publishing it.
type RetrySweeper struct {
	transactions repository.TransactionRepository
	retries      repository.RetryQueueRepository
	publisher    queue.Publisher
	logger       *zap.Logger
	interval     time.Duration
	limit        int
	now          func() time.Time
}

func NewRetrySweeper(
	transactions repository.TransactionRepository,
	retries repository.RetryQueueRepository,
	publisher queue.Publisher,
	interval time.Duration,
	logger *zap.Logger,
) (*RetrySweeper, error) {
	if transactions == nil {
		return nil, fmt.Errorf("transaction repository is required")
	}
	if retries == nil {
		return nil, fmt.Errorf("retry queue repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetrySweeper{
		transactions: transactions,
		retries:      retries,
		publisher:    publisher,
		logger:       logger,
		interval:     interval,
		limit:        defaultSweepLimit,
		now:          time.Now,
	}, nil
}

func (s *RetrySweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweepDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *RetrySweeper) sweepDue(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-sweepGrace)
	entries, err := s.retries.ListDueRetrying(ctx, cutoff, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	for i := range entries {
		entry := entries[i]

		tx, err := s.transactions.GetLatest(ctx, entry.TransactionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.logger.Error("failed to load transaction during sweep",
				zap.Int64("transactionId", entry.TransactionID),
				zap.Error(err),
			)
			continue
		}

		// Only wake transactions still waiting for this exact attempt.
		// Redundant publishes are harmless; the worker deduplicates.
		if tx.Status != domain.StatusRetrying || entry.RetryCount <= tx.AttemptNumber {
			continue
		}

		msg := queue.RetryMessage{
			TransactionID: entry.TransactionID,
			AttemptNumber: entry.RetryCount,
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.logger.Error("failed to re-enqueue scheduled retry",
				zap.Int64("transactionId", entry.TransactionID),
				zap.Int("attemptNumber", entry.RetryCount),
				zap.Error(err),
			)
			continue
		}

		s.logger.Info("scheduled retry re-enqueued",
			zap.Int64("transactionId", entry.TransactionID),
			zap.Int("attemptNumber", entry.RetryCount),
		)
	}

	return nil
}
