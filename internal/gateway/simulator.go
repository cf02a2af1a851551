package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
)

const simulatedLatency = 50 * time.Millisecond

// Simulator replays a canned gateway outcome derived from the last
// classified error recorded on the transaction. It stands in for the real
// payment gateway protocol.
type Simulator struct {
	latency time.Duration
}

func NewSimulator() *Simulator {
	return &Simulator{latency: simulatedLatency}
}

func (s *Simulator) Charge(ctx context.Context, attempt domain.TransactionAttempt) (*Response, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	switch attempt.ErrorType {
	case domain.ErrorTypeNetworkTimeout:
		return &Response{ErrorCode: "NETWORK_TIMEOUT", StatusCode: http.StatusRequestTimeout, ErrorMessage: "Simulated network timeout"}, nil
	case domain.ErrorTypeGatewayBusy:
		return &Response{ErrorCode: "GATEWAY_BUSY", StatusCode: http.StatusServiceUnavailable, ErrorMessage: "Simulated gateway busy"}, nil
	case domain.ErrorTypeRateLimitExceeded:
		return &Response{ErrorCode: "RATE_LIMIT_EXCEEDED", StatusCode: http.StatusTooManyRequests, ErrorMessage: "Simulated rate limit exceeded"}, nil
	case domain.ErrorTypeTemporaryServerError:
		return &Response{ErrorCode: "TEMPORARY_SERVER_ERROR", StatusCode: http.StatusInternalServerError, ErrorMessage: "Simulated temporary server error"}, nil
	case domain.ErrorTypeCardDeclined:
		return &Response{ErrorCode: "CARD_DECLINED", StatusCode: http.StatusPaymentRequired, ErrorMessage: "Simulated card declined"}, nil
	default:
		return &Response{ErrorCode: "UNKNOWN", StatusCode: http.StatusInternalServerError, ErrorMessage: "Simulated unknown error"}, nil
	}
}

// ConfirmStatus reports delayed success: the simulated gateway always says
// the timed-out transaction went through.
func (s *Simulator) ConfirmStatus(ctx context.Context, transactionID int64) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	latency := s.latency
	if latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
