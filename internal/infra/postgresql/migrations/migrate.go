package migrations

import (
	"fmt"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_transaction_attempts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.TransactionAttemptModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_transaction_attempts_id_attempted ON transaction_attempts (id, attempted_at DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_transaction_attempts_user_status_attempted ON transaction_attempts (user_id, status_id, attempted_at)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.TransactionAttemptModel{})
			},
		},
		{
			ID: "000002_create_retry_queue",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.RetryQueueModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_retry_queue_status_scheduled ON retry_queue (status_id, scheduled_retry_time)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.RetryQueueModel{})
			},
		},
		{
			ID: "000003_create_circuit_breaker_states",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.CircuitBreakerStateModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CircuitBreakerStateModel{})
			},
		},
		{
			ID: "000004_seed_lookup_tables",
			Migrate: func(tx *gorm.DB) error {
				statements := []string{
					`CREATE TABLE IF NOT EXISTS transaction_statuses (id INT PRIMARY KEY, name VARCHAR(20) NOT NULL)`,
					`CREATE TABLE IF NOT EXISTS error_types (id INT PRIMARY KEY, name VARCHAR(40) NOT NULL)`,
				}
				for _, sql := range statements {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				for _, s := range []domain.Status{
					domain.StatusPending, domain.StatusProcessing, domain.StatusSucceeded,
					domain.StatusFailed, domain.StatusRetrying, domain.StatusCancelled,
				} {
					sql := fmt.Sprintf(`INSERT INTO transaction_statuses (id, name) VALUES (%d, '%s') ON CONFLICT (id) DO NOTHING`, int(s), s)
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				for _, e := range []domain.ErrorType{
					domain.ErrorTypeNetworkTimeout, domain.ErrorTypeGatewayBusy,
					domain.ErrorTypeRateLimitExceeded, domain.ErrorTypeTemporaryServerError,
					domain.ErrorTypeCardDeclined, domain.ErrorTypeInsufficientFunds,
					domain.ErrorTypeInvalidAccountNumber, domain.ErrorTypeFraudDetected,
					domain.ErrorTypeAuthenticationFailed, domain.ErrorTypeUnknown,
				} {
					sql := fmt.Sprintf(`INSERT INTO error_types (id, name) VALUES (%d, '%s') ON CONFLICT (id) DO NOTHING`, int(e), e)
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec(`DROP TABLE IF EXISTS transaction_statuses`).Error; err != nil {
					return err
				}
				return tx.Exec(`DROP TABLE IF EXISTS error_types`).Error
			},
		},
	})

	return m.Migrate()
}
