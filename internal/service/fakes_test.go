package service

import (
	"context"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/gateway"
	"github.com/alimkdd/retry-engine/internal/queue"
)

type fakeTransactionRepo struct {
	getLatestFn           func(ctx context.Context, transactionID int64) (*domain.TransactionAttempt, error)
	claimProcessingFn     func(ctx context.Context, transactionID int64, observed domain.Status, attemptedAt time.Time) (bool, error)
	updateFn              func(ctx context.Context, t *domain.TransactionAttempt) error
	countRecentFailuresFn func(ctx context.Context, userID int64, since time.Time) (int64, error)
}

func (f *fakeTransactionRepo) GetLatest(ctx context.Context, transactionID int64) (*domain.TransactionAttempt, error) {
	if f.getLatestFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getLatestFn(ctx, transactionID)
}

func (f *fakeTransactionRepo) ClaimProcessing(ctx context.Context, transactionID int64, observed domain.Status, attemptedAt time.Time) (bool, error) {
	if f.claimProcessingFn == nil {
		return true, nil
	}
	return f.claimProcessingFn(ctx, transactionID, observed, attemptedAt)
}

func (f *fakeTransactionRepo) Update(ctx context.Context, t *domain.TransactionAttempt) error {
	if f.updateFn == nil {
		return nil
	}
	return f.updateFn(ctx, t)
}

func (f *fakeTransactionRepo) CountRecentFailures(ctx context.Context, userID int64, since time.Time) (int64, error) {
	if f.countRecentFailuresFn == nil {
		return 0, nil
	}
	return f.countRecentFailuresFn(ctx, userID, since)
}

type fakeRetryQueueRepo struct {
	appendFn            func(ctx context.Context, e *domain.RetryQueueEntry) error
	listByTransactionFn func(ctx context.Context, transactionID int64) ([]domain.RetryQueueEntry, error)
	cancelRetryingFn    func(ctx context.Context, transactionID int64) (int64, error)
	listDueRetryingFn   func(ctx context.Context, cutoff time.Time, limit int) ([]domain.RetryQueueEntry, error)
}

func (f *fakeRetryQueueRepo) Append(ctx context.Context, e *domain.RetryQueueEntry) error {
	if f.appendFn == nil {
		return nil
	}
	return f.appendFn(ctx, e)
}

func (f *fakeRetryQueueRepo) ListByTransaction(ctx context.Context, transactionID int64) ([]domain.RetryQueueEntry, error) {
	if f.listByTransactionFn == nil {
		return nil, nil
	}
	return f.listByTransactionFn(ctx, transactionID)
}

func (f *fakeRetryQueueRepo) CancelRetrying(ctx context.Context, transactionID int64) (int64, error) {
	if f.cancelRetryingFn == nil {
		return 0, nil
	}
	return f.cancelRetryingFn(ctx, transactionID)
}

func (f *fakeRetryQueueRepo) ListDueRetrying(ctx context.Context, cutoff time.Time, limit int) ([]domain.RetryQueueEntry, error) {
	if f.listDueRetryingFn == nil {
		return nil, nil
	}
	return f.listDueRetryingFn(ctx, cutoff, limit)
}

type fakePublisher struct {
	publishFn      func(ctx context.Context, msg queue.RetryMessage) error
	scheduleSendFn func(ctx context.Context, msg queue.RetryMessage, delay time.Duration) error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.RetryMessage) error {
	if f.publishFn == nil {
		return nil
	}
	return f.publishFn(ctx, msg)
}

func (f *fakePublisher) ScheduleSend(ctx context.Context, msg queue.RetryMessage, delay time.Duration) error {
	if f.scheduleSendFn == nil {
		return nil
	}
	return f.scheduleSendFn(ctx, msg, delay)
}

func (f *fakePublisher) Close() error { return nil }

type fakeGateway struct {
	chargeFn        func(ctx context.Context, attempt domain.TransactionAttempt) (*gateway.Response, error)
	confirmStatusFn func(ctx context.Context, transactionID int64) (bool, error)
}

func (f *fakeGateway) Charge(ctx context.Context, attempt domain.TransactionAttempt) (*gateway.Response, error) {
	if f.chargeFn == nil {
		return &gateway.Response{Success: true}, nil
	}
	return f.chargeFn(ctx, attempt)
}

func (f *fakeGateway) ConfirmStatus(ctx context.Context, transactionID int64) (bool, error) {
	if f.confirmStatusFn == nil {
		return false, nil
	}
	return f.confirmStatusFn(ctx, transactionID)
}

type fakeLimiter struct {
	incrementFailureFn func(ctx context.Context, userID int64) (int64, error)
	getFailuresFn      func(ctx context.Context, userID int64) (int64, error)
}

func (f *fakeLimiter) IncrementFailure(ctx context.Context, userID int64) (int64, error) {
	if f.incrementFailureFn == nil {
		return 1, nil
	}
	return f.incrementFailureFn(ctx, userID)
}

func (f *fakeLimiter) GetFailures(ctx context.Context, userID int64) (int64, error) {
	if f.getFailuresFn == nil {
		return 0, nil
	}
	return f.getFailuresFn(ctx, userID)
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.MessageHandler) error {
	if f.consumeFn == nil {
		<-ctx.Done()
		return nil
	}
	return f.consumeFn(ctx, handler)
}

func (f *fakeConsumer) Close() error { return nil }
