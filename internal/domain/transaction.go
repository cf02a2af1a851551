package domain

import "time"

// TransactionAttempt is the durable state of a payment transaction. One
// logical row per transaction id, versioned by AttemptedAt and status.
type TransactionAttempt struct {
	ID            int64
	UserID        int64
	Status        Status
	ErrorType     ErrorType
	AttemptNumber int
	ErrorMessage  *string
	AttemptedAt   time.Time
	ResponseTime  *time.Duration
	GatewayName   string
	CreatedAt     time.Time
}

// RetryQueueEntry is an append-only audit record of a single scheduled
// retry. Entries are never deleted; cancellation flips their status.
type RetryQueueEntry struct {
	ID                 int64
	TransactionID      int64
	Status             Status
	ScheduledRetryTime time.Time
	RetryCount         int
	CreatedAt          time.Time
}

// CircuitBreakerStateRecord is the persisted audit log of a gateway's
// in-memory breaker. It is write-through only: gating decisions are
// answered by the in-memory breaker, never by this row.
type CircuitBreakerStateRecord struct {
	ID              int64
	Gateway         string
	State           string
	FailureCount    int
	LastFailureTime time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
