package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	GetLatest(ctx context.Context, transactionID int64) (*domain.TransactionAttempt, error)
	ClaimProcessing(ctx context.Context, transactionID int64, observed domain.Status, attemptedAt time.Time) (bool, error)
	Update(ctx context.Context, t *domain.TransactionAttempt) error
	CountRecentFailures(ctx context.Context, userID int64, since time.Time) (int64, error)
}

type GormTransactionRepo struct {
	db *gorm.DB
}

func NewGormTransactionRepo(db *gorm.DB) *GormTransactionRepo {
	return &GormTransactionRepo{db: db}
}

func (r *GormTransactionRepo) GetLatest(ctx context.Context, transactionID int64) (*domain.TransactionAttempt, error) {
	var model TransactionAttemptModel
	err := r.db.WithContext(ctx).
		Where("id = ?", transactionID).
		Order("attempted_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return transactionModelToDomain(&model), nil
}

// ClaimProcessing flips the transaction to Processing only when its status
// still matches the one the caller observed. A false return means another
// worker won the race and the caller must not process the message.
func (r *GormTransactionRepo) ClaimProcessing(ctx context.Context, transactionID int64, observed domain.Status, attemptedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&TransactionAttemptModel{}).
		Where("id = ? AND status_id = ?", transactionID, int(observed)).
		Updates(map[string]any{
			"status_id":    int(domain.StatusProcessing),
			"attempted_at": attemptedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormTransactionRepo) Update(ctx context.Context, t *domain.TransactionAttempt) error {
	model := transactionModelFromDomain(t)
	result := r.db.WithContext(ctx).
		Model(&TransactionAttemptModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"status_id":      model.StatusID,
			"error_type_id":  model.ErrorTypeID,
			"attempt_number": model.AttemptNumber,
			"error_message":  model.ErrorMessage,
			"attempted_at":   model.AttemptedAt,
			"response_time":  model.ResponseTime,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormTransactionRepo) CountRecentFailures(ctx context.Context, userID int64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TransactionAttemptModel{}).
		Where("user_id = ? AND status_id = ? AND attempted_at >= ?", userID, int(domain.StatusFailed), since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
