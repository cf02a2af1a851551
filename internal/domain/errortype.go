package domain

import "fmt"

// ErrorType classifies a payment gateway failure. The numeric values are
// stable: they are stored in the error_type_id column, with 0 meaning
// "no classified error".
type ErrorType int

const (
	ErrorTypeNone                 ErrorType = 0
	ErrorTypeNetworkTimeout       ErrorType = 1
	ErrorTypeGatewayBusy          ErrorType = 2
	ErrorTypeRateLimitExceeded    ErrorType = 3
	ErrorTypeTemporaryServerError ErrorType = 4
	ErrorTypeCardDeclined         ErrorType = 5
	ErrorTypeInsufficientFunds    ErrorType = 6
	ErrorTypeInvalidAccountNumber ErrorType = 7
	ErrorTypeFraudDetected        ErrorType = 8
	ErrorTypeAuthenticationFailed ErrorType = 9
	ErrorTypeUnknown              ErrorType = 10
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeNone:                 "None",
	ErrorTypeNetworkTimeout:       "NetworkTimeout",
	ErrorTypeGatewayBusy:          "GatewayBusy",
	ErrorTypeRateLimitExceeded:    "RateLimitExceeded",
	ErrorTypeTemporaryServerError: "TemporaryServerError",
	ErrorTypeCardDeclined:         "CardDeclined",
	ErrorTypeInsufficientFunds:    "InsufficientFunds",
	ErrorTypeInvalidAccountNumber: "InvalidAccountNumber",
	ErrorTypeFraudDetected:        "FraudDetected",
	ErrorTypeAuthenticationFailed: "AuthenticationFailed",
	ErrorTypeUnknown:              "Unknown",
}

func (e ErrorType) String() string {
	if name, ok := errorTypeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(e))
}

func (e ErrorType) IsValid() bool {
	_, ok := errorTypeNames[e]
	return ok
}
