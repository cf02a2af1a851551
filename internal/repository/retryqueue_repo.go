package repository

import (
	"context"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"gorm.io/gorm"
)

type RetryQueueRepository interface {
	Append(ctx context.Context, e *domain.RetryQueueEntry) error
	ListByTransaction(ctx context.Context, transactionID int64) ([]domain.RetryQueueEntry, error)
	CancelRetrying(ctx context.Context, transactionID int64) (int64, error)
	ListDueRetrying(ctx context.Context, cutoff time.Time, limit int) ([]domain.RetryQueueEntry, error)
}

type GormRetryQueueRepo struct {
	db *gorm.DB
}

func NewGormRetryQueueRepo(db *gorm.DB) *GormRetryQueueRepo {
	return &GormRetryQueueRepo{db: db}
}

func (r *GormRetryQueueRepo) Append(ctx context.Context, e *domain.RetryQueueEntry) error {
	model := retryQueueModelFromDomain(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if e != nil {
		*e = *retryQueueModelToDomain(model)
	}
	return nil
}

func (r *GormRetryQueueRepo) ListByTransaction(ctx context.Context, transactionID int64) ([]domain.RetryQueueEntry, error) {
	var models []RetryQueueModel
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("retry_count ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RetryQueueEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *retryQueueModelToDomain(&models[i]))
	}

	return entries, nil
}

// CancelRetrying marks every pending entry of the transaction as cancelled
// and reports how many rows were flipped.
func (r *GormRetryQueueRepo) CancelRetrying(ctx context.Context, transactionID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&RetryQueueModel{}).
		Where("transaction_id = ? AND status_id = ?", transactionID, int(domain.StatusRetrying)).
		Update("status_id", int(domain.StatusCancelled))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormRetryQueueRepo) ListDueRetrying(ctx context.Context, cutoff time.Time, limit int) ([]domain.RetryQueueEntry, error) {
	var models []RetryQueueModel
	err := r.db.WithContext(ctx).
		Where("status_id = ? AND scheduled_retry_time <= ?", int(domain.StatusRetrying), cutoff).
		Order("scheduled_retry_time ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RetryQueueEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *retryQueueModelToDomain(&models[i]))
	}

	return entries, nil
}
