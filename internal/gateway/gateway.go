package gateway

import (
	"context"

	"github.com/alimkdd/retry-engine/internal/domain"
)

// Gateway is the outbound payment gateway port.
type Gateway interface {
	// Charge submits the transaction to the gateway. A non-nil error means
	// the call itself broke (transport fault, malformed reply); a failed
	// charge is reported through Response with Success=false.
	Charge(ctx context.Context, attempt domain.TransactionAttempt) (*Response, error)

	// ConfirmStatus asks the gateway whether the transaction already went
	// through, used after a network timeout before finalizing.
	ConfirmStatus(ctx context.Context, transactionID int64) (bool, error)
}

// Response stores the gateway call outcome used for error classification.
type Response struct {
	Success      bool
	ErrorCode    string
	StatusCode   int
	ErrorMessage string
}
