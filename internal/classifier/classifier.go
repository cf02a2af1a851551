// Package classifier maps payment gateway outcomes onto the closed error
// taxonomy used by the retry policy table.
package classifier

import (
	"net/http"
	"strings"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/alimkdd/retry-engine/internal/gateway"
)

var statusCodeTable = map[int]domain.ErrorType{
	http.StatusRequestTimeout:      domain.ErrorTypeNetworkTimeout,
	http.StatusServiceUnavailable:  domain.ErrorTypeGatewayBusy,
	http.StatusTooManyRequests:     domain.ErrorTypeRateLimitExceeded,
	http.StatusInternalServerError: domain.ErrorTypeTemporaryServerError,
	http.StatusUnauthorized:        domain.ErrorTypeAuthenticationFailed,
}

var errorCodeTable = map[string]domain.ErrorType{
	"NETWORK_TIMEOUT":    domain.ErrorTypeNetworkTimeout,
	"CARD_DECLINED":      domain.ErrorTypeCardDeclined,
	"INSUFFICIENT_FUNDS": domain.ErrorTypeInsufficientFunds,
	"INVALID_ACCOUNT":    domain.ErrorTypeInvalidAccountNumber,
	"FRAUD_DETECTED":     domain.ErrorTypeFraudDetected,
}

// Classify maps a gateway response to an error type. Successful responses
// classify as Unknown, the "no error" sentinel. Status-code classification
// takes priority over the error-code string table.
func Classify(response gateway.Response) domain.ErrorType {
	if response.Success {
		return domain.ErrorTypeUnknown
	}

	if errorType, ok := statusCodeTable[response.StatusCode]; ok {
		return errorType
	}
	if errorType, ok := errorCodeTable[strings.ToUpper(strings.TrimSpace(response.ErrorCode))]; ok {
		return errorType
	}

	return domain.ErrorTypeUnknown
}

// IsRetryable reports whether another gateway attempt can be useful.
func IsRetryable(errorType domain.ErrorType) bool {
	switch errorType {
	case domain.ErrorTypeNetworkTimeout,
		domain.ErrorTypeGatewayBusy,
		domain.ErrorTypeRateLimitExceeded,
		domain.ErrorTypeTemporaryServerError:
		return true
	}
	return false
}
