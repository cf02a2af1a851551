package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/alimkdd/retry-engine/internal/breaker"
	"github.com/alimkdd/retry-engine/internal/classifier"
	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/gateway"
	"github.com/alimkdd/retry-engine/internal/observability"
	"github.com/alimkdd/retry-engine/internal/queue"
	"github.com/alimkdd/retry-engine/internal/ratelimit"
	"github.com/alimkdd/retry-engine/internal/repository"
	"github.com/alimkdd/retry-engine/internal/retrypolicy"
	"go.uber.org/zap"
)

const (
	// manualVerificationMessage finalizes transactions whose user crossed
	// the recent-failure threshold.
	manualVerificationMessage = "Requires manual verification due to repeated failures"

	failureRateThreshold = 5
	failureRateWindow    = time.Hour
)

// RetryOrchestrator drives a single transaction retry attempt from a queue
// message through the gateway call to its next persisted state.
type RetryOrchestrator struct {
	transactions repository.TransactionRepository
	retries      repository.RetryQueueRepository
	publisher    queue.Publisher
	gateway      gateway.Gateway
	breakers     *breaker.Registry
	resolver     *retrypolicy.Resolver
	limiter      ratelimit.FailureLimiter
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	randIntn     func(n int) int
}

func NewRetryOrchestrator(
	transactions repository.TransactionRepository,
	retries repository.RetryQueueRepository,
	publisher queue.Publisher,
	gw gateway.Gateway,
	breakers *breaker.Registry,
	resolver *retrypolicy.Resolver,
	limiter ratelimit.FailureLimiter,
	logger *zap.Logger,
) *RetryOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryOrchestrator{
		transactions: transactions,
		retries:      retries,
		publisher:    publisher,
		gateway:      gw,
		breakers:     breakers,
		resolver:     resolver,
		limiter:      limiter,
		logger:       logger,
		now:          time.Now,
		randIntn:     rand.Intn,
	}
}

func (o *RetryOrchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

// ProcessRetry handles one retry message. Duplicates and lost claim races
// resolve to a silent no-op so redelivered messages stay harmless.
func (o *RetryOrchestrator) ProcessRetry(ctx context.Context, msg queue.RetryMessage) error {
	logger := observability.WithContextLogger(o.logger, ctx).With(
		zap.Int64("transactionId", msg.TransactionID),
		zap.Int("attemptNumber", msg.AttemptNumber),
	)

	tx, err := o.transactions.GetLatest(ctx, msg.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("transaction not found, skipping")
			return nil
		}
		return fmt.Errorf("failed to load transaction: %w", err)
	}

	if skip, reason := o.shouldSkip(tx, msg); skip {
		logger.Info("skipping retry message", zap.String("reason", reason))
		return nil
	}

	claimed, err := o.transactions.ClaimProcessing(ctx, tx.ID, tx.Status, o.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to claim transaction: %w", err)
	}
	if !claimed {
		logger.Info("lost claim race, skipping")
		return nil
	}

	since := o.now().UTC().Add(-failureRateWindow)
	recentFailures, err := o.transactions.CountRecentFailures(ctx, tx.UserID, since)
	if err != nil {
		return fmt.Errorf("failed to count recent failures: %w", err)
	}
	if recentFailures > failureRateThreshold {
		logger.Warn("user failure rate exceeded, requiring manual verification",
			zap.Int64("userId", tx.UserID),
			zap.Int64("recentFailures", recentFailures),
		)
		message := manualVerificationMessage
		return o.finalize(ctx, tx, msg.AttemptNumber, domain.StatusFailed, tx.ErrorType, &message, nil)
	}

	policy := o.breakers.Get(tx.GatewayName)

	var resp *gateway.Response
	callStart := o.now()
	execErr := policy.Execute(ctx, func(ctx context.Context) error {
		r, chargeErr := o.gateway.Charge(ctx, *tx)
		if chargeErr != nil {
			return chargeErr
		}
		resp = r
		return nil
	})
	elapsed := o.now().Sub(callStart)
	if o.metrics != nil {
		o.metrics.ObserveGatewayCallDuration(tx.GatewayName, elapsed)
	}

	if errors.Is(execErr, breaker.ErrCircuitOpen) {
		return o.rescheduleForOpenCircuit(ctx, logger, tx, msg)
	}
	if execErr != nil {
		logger.Error("gateway call broke", zap.Error(execErr))
		message := execErr.Error()
		if err := o.recordUserFailure(ctx, tx); err != nil {
			return err
		}
		return o.finalize(ctx, tx, msg.AttemptNumber, domain.StatusFailed, domain.ErrorTypeUnknown, &message, &elapsed)
	}

	errorType := classifier.Classify(*resp)

	if resp.Success {
		logger.Info("transaction succeeded", zap.Duration("responseTime", elapsed))
		return o.finalize(ctx, tx, msg.AttemptNumber, domain.StatusSucceeded, domain.ErrorTypeNone, nil, &elapsed)
	}

	retryPolicy := o.resolver.Resolve(errorType)
	nextAttempt := msg.AttemptNumber + 1

	// MaxAttempts caps executable attempt numbers: an attempt already at
	// the cap finalizes here instead of scheduling attempt MaxAttempts+1,
	// which would index past the policy's delay table.
	if classifier.IsRetryable(errorType) && !retryPolicy.IsZero() && nextAttempt <= retryPolicy.MaxAttempts {
		return o.scheduleRetry(ctx, logger, tx, msg, errorType, retryPolicy, resp.ErrorMessage, elapsed)
	}

	// A timed-out charge may still have gone through. Ask before failing.
	if errorType == domain.ErrorTypeNetworkTimeout {
		confirmed, confirmErr := o.gateway.ConfirmStatus(ctx, tx.ID)
		if confirmErr != nil {
			logger.Warn("status confirmation failed", zap.Error(confirmErr))
		} else if confirmed {
			logger.Info("timed-out transaction confirmed as succeeded")
			return o.finalize(ctx, tx, msg.AttemptNumber, domain.StatusSucceeded, domain.ErrorTypeNone, nil, &elapsed)
		}
	}

	logger.Info("transaction failed terminally",
		zap.String("errorType", errorType.String()),
	)
	if err := o.recordUserFailure(ctx, tx); err != nil {
		return err
	}

	var message *string
	if resp.ErrorMessage != "" {
		message = &resp.ErrorMessage
	}
	return o.finalize(ctx, tx, msg.AttemptNumber, domain.StatusFailed, errorType, message, &elapsed)
}

// shouldSkip applies the idempotency guard. A Retrying transaction accepts
// only the message for the attempt after the one already persisted;
// anything at or below it is a duplicate delivery.
func (o *RetryOrchestrator) shouldSkip(tx *domain.TransactionAttempt, msg queue.RetryMessage) (bool, string) {
	switch tx.Status {
	case domain.StatusSucceeded:
		return true, "already succeeded"
	case domain.StatusCancelled:
		return true, "cancelled"
	case domain.StatusProcessing:
		return true, "already processing"
	case domain.StatusRetrying:
		if msg.AttemptNumber <= tx.AttemptNumber {
			return true, "duplicate delivery"
		}
	}
	return false, ""
}

func (o *RetryOrchestrator) scheduleRetry(
	ctx context.Context,
	logger *zap.Logger,
	tx *domain.TransactionAttempt,
	msg queue.RetryMessage,
	errorType domain.ErrorType,
	policy retrypolicy.Policy,
	errorMessage string,
	elapsed time.Duration,
) error {
	delay, err := retrypolicy.Delay(policy, msg.AttemptNumber, o.randIntn)
	if err != nil {
		return fmt.Errorf("failed to compute retry delay: %w", err)
	}

	nextAttempt := msg.AttemptNumber + 1
	scheduledAt := o.now().UTC().Add(delay)

	entry := &domain.RetryQueueEntry{
		TransactionID:      tx.ID,
		Status:             domain.StatusRetrying,
		ScheduledRetryTime: scheduledAt,
		RetryCount:         nextAttempt,
		CreatedAt:          o.now().UTC(),
	}
	if err := o.retries.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append retry queue entry: %w", err)
	}

	next := queue.RetryMessage{
		TransactionID: tx.ID,
		AttemptNumber: nextAttempt,
		CorrelationID: msg.CorrelationID,
	}
	if err := o.publisher.ScheduleSend(ctx, next, delay); err != nil {
		return fmt.Errorf("failed to schedule retry message: %w", err)
	}

	tx.Status = domain.StatusRetrying
	tx.ErrorType = errorType
	tx.AttemptNumber = msg.AttemptNumber
	tx.ResponseTime = &elapsed
	if errorMessage != "" {
		tx.ErrorMessage = &errorMessage
	}
	if err := o.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("failed to persist retrying transaction: %w", err)
	}

	if o.metrics != nil {
		o.metrics.IncRetryScheduled(errorType.String())
	}
	logger.Info("retry scheduled",
		zap.String("errorType", errorType.String()),
		zap.Int("nextAttempt", nextAttempt),
		zap.Duration("delay", delay),
	)
	return nil
}

// rescheduleForOpenCircuit parks the same attempt until the breaker's
// cooldown may have elapsed. The attempt budget is not consumed.
func (o *RetryOrchestrator) rescheduleForOpenCircuit(
	ctx context.Context,
	logger *zap.Logger,
	tx *domain.TransactionAttempt,
	msg queue.RetryMessage,
) error {
	delay := o.breakers.Config().ResetTimeout
	scheduledAt := o.now().UTC().Add(delay)

	// The parked row carries the same retry count as the attempt it
	// replays, not an incremented one. It feeds the sweeper and shows up
	// in the retry history as a repeat of that attempt number.
	entry := &domain.RetryQueueEntry{
		TransactionID:      tx.ID,
		Status:             domain.StatusRetrying,
		ScheduledRetryTime: scheduledAt,
		RetryCount:         msg.AttemptNumber,
		CreatedAt:          o.now().UTC(),
	}
	if err := o.retries.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append retry queue entry: %w", err)
	}

	if err := o.publisher.ScheduleSend(ctx, msg, delay); err != nil {
		return fmt.Errorf("failed to reschedule retry message: %w", err)
	}

	// Keep the persisted attempt number below the rescheduled message so
	// the redelivery passes the duplicate guard.
	tx.Status = domain.StatusRetrying
	tx.AttemptNumber = msg.AttemptNumber - 1
	if err := o.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("failed to persist rescheduled transaction: %w", err)
	}

	logger.Info("circuit open, retry parked",
		zap.String("gateway", tx.GatewayName),
		zap.Duration("delay", delay),
	)
	return nil
}

func (o *RetryOrchestrator) finalize(
	ctx context.Context,
	tx *domain.TransactionAttempt,
	attemptNumber int,
	status domain.Status,
	errorType domain.ErrorType,
	errorMessage *string,
	responseTime *time.Duration,
) error {
	tx.Status = status
	tx.ErrorType = errorType
	tx.AttemptNumber = attemptNumber
	tx.ErrorMessage = errorMessage
	if responseTime != nil {
		tx.ResponseTime = responseTime
	}

	if err := o.transactions.Update(ctx, tx); err != nil {
		return fmt.Errorf("failed to finalize transaction: %w", err)
	}

	if o.metrics != nil {
		o.metrics.IncTransactionFinalized(status.String())
	}
	return nil
}

func (o *RetryOrchestrator) recordUserFailure(ctx context.Context, tx *domain.TransactionAttempt) error {
	count, err := o.limiter.IncrementFailure(ctx, tx.UserID)
	if err != nil {
		return fmt.Errorf("failed to record user failure: %w", err)
	}

	o.logger.Info("user failure recorded",
		zap.Int64("userId", tx.UserID),
		zap.Int64("windowFailures", count),
	)

	o.breakers.RecordFailure(tx.GatewayName)
	return nil
}
