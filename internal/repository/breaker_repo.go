package repository

import (
	"context"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBreakerStateRepo persists circuit breaker transitions so the state
// survives restarts.
type GormBreakerStateRepo struct {
	db *gorm.DB
}

func NewGormBreakerStateRepo(db *gorm.DB) *GormBreakerStateRepo {
	return &GormBreakerStateRepo{db: db}
}

func (r *GormBreakerStateRepo) Upsert(ctx context.Context, gateway, state string, now time.Time) error {
	model := CircuitBreakerStateModel{
		Gateway:         gateway,
		State:           state,
		FailureCount:    1,
		LastFailureTime: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "gateway"}},
			DoUpdates: clause.Assignments(map[string]any{
				"state":             state,
				"failure_count":     gorm.Expr("circuit_breaker_states.failure_count + 1"),
				"last_failure_time": now,
				"updated_at":        now,
			}),
		}).
		Create(&model).Error
}

func (r *GormBreakerStateRepo) GetAll(ctx context.Context) ([]domain.CircuitBreakerStateRecord, error) {
	var models []CircuitBreakerStateModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]domain.CircuitBreakerStateRecord, 0, len(models))
	for i := range models {
		records = append(records, *breakerStateModelToDomain(&models[i]))
	}

	return records, nil
}
