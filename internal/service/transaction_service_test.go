package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/queue"
	"go.uber.org/zap"
)

func newTestTransactionService(
	transactions *fakeTransactionRepo,
	retries *fakeRetryQueueRepo,
	publisher *fakePublisher,
	limiter *fakeLimiter,
) *TransactionService {
	if transactions == nil {
		transactions = &fakeTransactionRepo{}
	}
	if retries == nil {
		retries = &fakeRetryQueueRepo{}
	}
	if publisher == nil {
		publisher = &fakePublisher{}
	}
	if limiter == nil {
		limiter = &fakeLimiter{}
	}
	return NewTransactionService(transactions, retries, publisher, limiter, zap.NewNop())
}

func TestGetRetryHistoryOrdersByAttempt(t *testing.T) {
	t.Parallel()

	retries := &fakeRetryQueueRepo{
		listByTransactionFn: func(ctx context.Context, id int64) ([]domain.RetryQueueEntry, error) {
			if id != 42 {
				t.Fatalf("transaction id = %d, want 42", id)
			}
			return []domain.RetryQueueEntry{
				{TransactionID: 42, RetryCount: 2},
				{TransactionID: 42, RetryCount: 3},
			}, nil
		},
	}

	svc := newTestTransactionService(nil, retries, nil, nil)

	entries, err := svc.GetRetryHistory(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetRetryHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}

func TestGetRetryHistoryKeepsParkedDuplicateAttempt(t *testing.T) {
	t.Parallel()

	// Attempt 2 appears twice: once scheduled normally, once parked while
	// the gateway circuit was open.
	retries := &fakeRetryQueueRepo{
		listByTransactionFn: func(ctx context.Context, id int64) ([]domain.RetryQueueEntry, error) {
			return []domain.RetryQueueEntry{
				{TransactionID: 42, RetryCount: 2},
				{TransactionID: 42, RetryCount: 2},
				{TransactionID: 42, RetryCount: 3},
			}, nil
		},
	}

	svc := newTestTransactionService(nil, retries, nil, nil)

	entries, err := svc.GetRetryHistory(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetRetryHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	counts := []int{entries[0].RetryCount, entries[1].RetryCount, entries[2].RetryCount}
	if counts[0] != 2 || counts[1] != 2 || counts[2] != 3 {
		t.Fatalf("retry counts = %v, want [2 2 3]", counts)
	}
}

func TestGetRetryHistoryEmptyIsNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestTransactionService(nil, nil, nil, nil)

	_, err := svc.GetRetryHistory(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetRetryHistoryInvalidID(t *testing.T) {
	t.Parallel()

	svc := newTestTransactionService(nil, nil, nil, nil)

	_, err := svc.GetRetryHistory(context.Background(), 0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestGetStatusIncludesFailureCount(t *testing.T) {
	t.Parallel()

	message := "card declined"
	transactions := &fakeTransactionRepo{
		getLatestFn: func(ctx context.Context, id int64) (*domain.TransactionAttempt, error) {
			return &domain.TransactionAttempt{
				ID:            42,
				UserID:        7,
				Status:        domain.StatusFailed,
				ErrorType:     domain.ErrorTypeCardDeclined,
				AttemptNumber: 2,
				ErrorMessage:  &message,
				AttemptedAt:   time.Unix(1_700_000_000, 0),
			}, nil
		},
	}
	limiter := &fakeLimiter{
		getFailuresFn: func(ctx context.Context, userID int64) (int64, error) {
			if userID != 7 {
				t.Fatalf("user id = %d, want 7", userID)
			}
			return 3, nil
		},
	}

	svc := newTestTransactionService(transactions, nil, nil, limiter)

	status, err := svc.GetStatus(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}

	if status.Status != "Failed" {
		t.Fatalf("status = %s, want Failed", status.Status)
	}
	if status.ErrorType != "CardDeclined" {
		t.Fatalf("error type = %s, want CardDeclined", status.ErrorType)
	}
	if status.RecentFailures != 3 {
		t.Fatalf("recent failures = %d, want 3", status.RecentFailures)
	}
}

func TestGetStatusFailureCountReadBestEffort(t *testing.T) {
	t.Parallel()

	transactions := &fakeTransactionRepo{
		getLatestFn: func(ctx context.Context, id int64) (*domain.TransactionAttempt, error) {
			return &domain.TransactionAttempt{ID: 42, UserID: 7, Status: domain.StatusSucceeded}, nil
		},
	}
	limiter := &fakeLimiter{
		getFailuresFn: func(ctx context.Context, userID int64) (int64, error) {
			return 0, errors.New("redis down")
		},
	}

	svc := newTestTransactionService(transactions, nil, nil, limiter)

	status, err := svc.GetStatus(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.RecentFailures != 0 {
		t.Fatalf("recent failures = %d, want 0", status.RecentFailures)
	}
}

func TestRequestRetryPublishes(t *testing.T) {
	t.Parallel()

	var published queue.RetryMessage
	transactions := &fakeTransactionRepo{
		getLatestFn: func(ctx context.Context, id int64) (*domain.TransactionAttempt, error) {
			return &domain.TransactionAttempt{ID: 42, Status: domain.StatusPending, AttemptNumber: 1}, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.RetryMessage) error {
			published = msg
			return nil
		},
	}

	svc := newTestTransactionService(transactions, nil, publisher, nil)

	message, err := svc.RequestRetry(context.Background(), 42)
	if err != nil {
		t.Fatalf("RequestRetry() error = %v", err)
	}
	if message != retryScheduledMessage {
		t.Fatalf("message = %q, want %q", message, retryScheduledMessage)
	}
	if published.TransactionID != 42 || published.AttemptNumber != 1 {
		t.Fatalf("published = %+v, want transaction 42 attempt 1", published)
	}
}

func TestRequestRetryAfterFailureContinuesNumbering(t *testing.T) {
	t.Parallel()

	var published queue.RetryMessage
	transactions := &fakeTransactionRepo{
		getLatestFn: func(ctx context.Context, id int64) (*domain.TransactionAttempt, error) {
			return &domain.TransactionAttempt{ID: 42, Status: domain.StatusFailed, AttemptNumber: 3}, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, msg queue.RetryMessage) error {
			published = msg
			return nil
		},
	}

	svc := newTestTransactionService(transactions, nil, publisher, nil)

	if _, err := svc.RequestRetry(context.Background(), 42); err != nil {
		t.Fatalf("RequestRetry() error = %v", err)
	}
	if published.AttemptNumber != 4 {
		t.Fatalf("published attempt = %d, want 4", published.AttemptNumber)
	}
}

func TestRequestRetryConflicts(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.Status{
		domain.StatusSucceeded,
		domain.StatusProcessing,
		domain.StatusRetrying,
	} {
		t.Run(status.String(), func(t *testing.T) {
			t.Parallel()

			transactions := &fakeTransactionRepo{
				getLatestFn: func(ctx context.Context, id int64) (*domain.TransactionAttempt, error) {
					return &domain.TransactionAttempt{ID: 42, Status: status, AttemptNumber: 1}, nil
				},
			}
			publisher := &fakePublisher{
				publishFn: func(ctx context.Context, msg queue.RetryMessage) error {
					t.Fatal("conflicting retry must not publish")
					return nil
				},
			}

			svc := newTestTransactionService(transactions, nil, publisher, nil)

			_, err := svc.RequestRetry(context.Background(), 42)
			if !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("error = %v, want ErrConflict", err)
			}
		})
	}
}

func TestCancelRetries(t *testing.T) {
	t.Parallel()

	var updated *domain.TransactionAttempt
	transactions := &fakeTransactionRepo{
		getLatestFn: func(ctx context.Context, id int64) (*domain.TransactionAttempt, error) {
			return &domain.TransactionAttempt{ID: 42, Status: domain.StatusRetrying, AttemptNumber: 2}, nil
		},
		updateFn: func(ctx context.Context, u *domain.TransactionAttempt) error {
			updated = u
			return nil
		},
	}
	retries := &fakeRetryQueueRepo{
		cancelRetryingFn: func(ctx context.Context, id int64) (int64, error) {
			return 2, nil
		},
	}

	svc := newTestTransactionService(transactions, retries, nil, nil)

	message, err := svc.CancelRetries(context.Background(), 42)
	if err != nil {
		t.Fatalf("CancelRetries() error = %v", err)
	}
	if message != retriesCancelledMessage {
		t.Fatalf("message = %q, want %q", message, retriesCancelledMessage)
	}
	if updated == nil || updated.Status != domain.StatusCancelled {
		t.Fatalf("transaction should be marked Cancelled, got %+v", updated)
	}
}

func TestCancelRetriesNothingPending(t *testing.T) {
	t.Parallel()

	svc := newTestTransactionService(nil, nil, nil, nil)

	_, err := svc.CancelRetries(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
