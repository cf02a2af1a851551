package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/queue"
	"github.com/alimkdd/retry-engine/internal/ratelimit"
	"github.com/alimkdd/retry-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	retryScheduledMessage   = "Retry Scheduled!"
	retriesCancelledMessage = "Pending Retries Cancelled!"
)

// TransactionStatus is the read-model returned to API clients.
type TransactionStatus struct {
	TransactionID  int64
	UserID         int64
	Status         string
	ErrorType      string
	AttemptNumber  int
	ErrorMessage   *string
	AttemptedAt    time.Time
	RecentFailures int64
}

// TransactionService serves the REST read surface and the manual retry and
// cancel commands.
type TransactionService struct {
	transactions repository.TransactionRepository
	retries      repository.RetryQueueRepository
	publisher    queue.Publisher
	limiter      ratelimit.FailureLimiter
	logger       *zap.Logger
}

func NewTransactionService(
	transactions repository.TransactionRepository,
	retries repository.RetryQueueRepository,
	publisher queue.Publisher,
	limiter ratelimit.FailureLimiter,
	logger *zap.Logger,
) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TransactionService{
		transactions: transactions,
		retries:      retries,
		publisher:    publisher,
		limiter:      limiter,
		logger:       logger,
	}
}

// GetRetryHistory lists the scheduled retries of a transaction in attempt
// order. An attempt number may appear more than once: a retry parked while
// the gateway's circuit was open replays the same attempt and adds its
// own row.
func (s *TransactionService) GetRetryHistory(ctx context.Context, transactionID int64) ([]domain.RetryQueueEntry, error) {
	if transactionID <= 0 {
		return nil, fmt.Errorf("%w: transaction id must be positive", domain.ErrValidation)
	}

	entries, err := s.retries.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list retry history: %w", err)
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}

	return entries, nil
}

// GetStatus returns the latest state of a transaction together with the
// user's failure count in the current window.
func (s *TransactionService) GetStatus(ctx context.Context, transactionID int64) (*TransactionStatus, error) {
	if transactionID <= 0 {
		return nil, fmt.Errorf("%w: transaction id must be positive", domain.ErrValidation)
	}

	tx, err := s.transactions.GetLatest(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	recentFailures, err := s.limiter.GetFailures(ctx, tx.UserID)
	if err != nil {
		s.logger.Warn("failed to read user failure count",
			zap.Int64("userId", tx.UserID),
			zap.Error(err),
		)
		recentFailures = 0
	}

	return &TransactionStatus{
		TransactionID:  tx.ID,
		UserID:         tx.UserID,
		Status:         tx.Status.String(),
		ErrorType:      tx.ErrorType.String(),
		AttemptNumber:  tx.AttemptNumber,
		ErrorMessage:   tx.ErrorMessage,
		AttemptedAt:    tx.AttemptedAt,
		RecentFailures: recentFailures,
	}, nil
}

// RequestRetry enqueues a retry for a transaction that is not already being
// worked on.
func (s *TransactionService) RequestRetry(ctx context.Context, transactionID int64) (string, error) {
	if transactionID <= 0 {
		return "", fmt.Errorf("%w: transaction id must be positive", domain.ErrValidation)
	}

	tx, err := s.transactions.GetLatest(ctx, transactionID)
	if err != nil {
		return "", err
	}

	switch tx.Status {
	case domain.StatusSucceeded:
		return "", fmt.Errorf("%w: transaction already succeeded", domain.ErrConflict)
	case domain.StatusProcessing, domain.StatusRetrying:
		return "", fmt.Errorf("%w: retry already in progress", domain.ErrConflict)
	}

	attemptNumber := tx.AttemptNumber
	if tx.Status != domain.StatusPending {
		attemptNumber++
	}
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	msg := queue.RetryMessage{
		TransactionID: tx.ID,
		AttemptNumber: attemptNumber,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to publish retry message: %w", err)
	}

	s.logger.Info("manual retry requested",
		zap.Int64("transactionId", tx.ID),
		zap.Int("attemptNumber", attemptNumber),
	)
	return retryScheduledMessage, nil
}

// CancelRetries cancels all pending retries of a transaction.
func (s *TransactionService) CancelRetries(ctx context.Context, transactionID int64) (string, error) {
	if transactionID <= 0 {
		return "", fmt.Errorf("%w: transaction id must be positive", domain.ErrValidation)
	}

	cancelled, err := s.retries.CancelRetrying(ctx, transactionID)
	if err != nil {
		return "", fmt.Errorf("failed to cancel retries: %w", err)
	}
	if cancelled == 0 {
		return "", domain.ErrNotFound
	}

	tx, err := s.transactions.GetLatest(ctx, transactionID)
	if err != nil {
		return "", err
	}
	if tx.Status == domain.StatusRetrying {
		tx.Status = domain.StatusCancelled
		if err := s.transactions.Update(ctx, tx); err != nil {
			return "", fmt.Errorf("failed to mark transaction cancelled: %w", err)
		}
	}

	s.logger.Info("pending retries cancelled",
		zap.Int64("transactionId", transactionID),
		zap.Int64("cancelled", cancelled),
	)
	return retriesCancelledMessage, nil
}
