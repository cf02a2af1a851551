package queue

import (
	"fmt"
)

// RetryMessage is the broker payload for transaction retry processing.
type RetryMessage struct {
	TransactionID int64  `json:"transactionId"`
	AttemptNumber int    `json:"attemptNumber"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (m RetryMessage) Validate() error {
	if m.TransactionID <= 0 {
		return fmt.Errorf("transactionId must be positive, got %d", m.TransactionID)
	}
	if m.AttemptNumber < 1 {
		return fmt.Errorf("attemptNumber must be at least 1, got %d", m.AttemptNumber)
	}
	return nil
}
