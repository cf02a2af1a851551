package repository

import (
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
)

// TransactionAttemptModel is the persistence model for transaction_attempts.
type TransactionAttemptModel struct {
	ID            int64   `gorm:"primaryKey"`
	UserID        int64   `gorm:"not null;index"`
	StatusID      int     `gorm:"not null;index"`
	ErrorTypeID   int     `gorm:"not null;default:0"`
	AttemptNumber int     `gorm:"not null;default:1"`
	ErrorMessage  *string `gorm:"type:text"`
	AttemptedAt   time.Time
	ResponseTime  *int64 `gorm:"comment:gateway call duration in milliseconds"`
	GatewayName   string `gorm:"type:varchar(100);not null"`
	CreatedAt     time.Time
}

func (TransactionAttemptModel) TableName() string {
	return "transaction_attempts"
}

// RetryQueueModel is the persistence model for retry_queue.
type RetryQueueModel struct {
	ID                 int64 `gorm:"primaryKey;autoIncrement"`
	TransactionID      int64 `gorm:"not null;index"`
	StatusID           int   `gorm:"not null"`
	ScheduledRetryTime time.Time
	RetryCount         int `gorm:"not null"`
	CreatedAt          time.Time
}

func (RetryQueueModel) TableName() string {
	return "retry_queue"
}

// CircuitBreakerStateModel is the persistence model for circuit_breaker_states.
type CircuitBreakerStateModel struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	Gateway         string `gorm:"type:varchar(100);not null;uniqueIndex"`
	State           string `gorm:"type:varchar(20);not null"`
	FailureCount    int    `gorm:"not null;default:0"`
	LastFailureTime time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CircuitBreakerStateModel) TableName() string {
	return "circuit_breaker_states"
}

func transactionModelFromDomain(t *domain.TransactionAttempt) *TransactionAttemptModel {
	if t == nil {
		return nil
	}

	model := &TransactionAttemptModel{
		ID:            t.ID,
		UserID:        t.UserID,
		StatusID:      int(t.Status),
		ErrorTypeID:   int(t.ErrorType),
		AttemptNumber: t.AttemptNumber,
		ErrorMessage:  t.ErrorMessage,
		AttemptedAt:   t.AttemptedAt,
		GatewayName:   t.GatewayName,
		CreatedAt:     t.CreatedAt,
	}
	if t.ResponseTime != nil {
		millis := t.ResponseTime.Milliseconds()
		model.ResponseTime = &millis
	}
	return model
}

func transactionModelToDomain(m *TransactionAttemptModel) *domain.TransactionAttempt {
	if m == nil {
		return nil
	}

	attempt := &domain.TransactionAttempt{
		ID:            m.ID,
		UserID:        m.UserID,
		Status:        domain.Status(m.StatusID),
		ErrorType:     domain.ErrorType(m.ErrorTypeID),
		AttemptNumber: m.AttemptNumber,
		ErrorMessage:  m.ErrorMessage,
		AttemptedAt:   m.AttemptedAt,
		GatewayName:   m.GatewayName,
		CreatedAt:     m.CreatedAt,
	}
	if m.ResponseTime != nil {
		duration := time.Duration(*m.ResponseTime) * time.Millisecond
		attempt.ResponseTime = &duration
	}
	return attempt
}

func retryQueueModelFromDomain(e *domain.RetryQueueEntry) *RetryQueueModel {
	if e == nil {
		return nil
	}

	return &RetryQueueModel{
		ID:                 e.ID,
		TransactionID:      e.TransactionID,
		StatusID:           int(e.Status),
		ScheduledRetryTime: e.ScheduledRetryTime,
		RetryCount:         e.RetryCount,
		CreatedAt:          e.CreatedAt,
	}
}

func retryQueueModelToDomain(m *RetryQueueModel) *domain.RetryQueueEntry {
	if m == nil {
		return nil
	}

	return &domain.RetryQueueEntry{
		ID:                 m.ID,
		TransactionID:      m.TransactionID,
		Status:             domain.Status(m.StatusID),
		ScheduledRetryTime: m.ScheduledRetryTime,
		RetryCount:         m.RetryCount,
		CreatedAt:          m.CreatedAt,
	}
}

func breakerStateModelToDomain(m *CircuitBreakerStateModel) *domain.CircuitBreakerStateRecord {
	if m == nil {
		return nil
	}

	return &domain.CircuitBreakerStateRecord{
		ID:              m.ID,
		Gateway:         m.Gateway,
		State:           m.State,
		FailureCount:    m.FailureCount,
		LastFailureTime: m.LastFailureTime,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
