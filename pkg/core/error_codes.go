package core

import "errors"

// ErrorCode represents a canonical error identifier.
// Error codes provide a stable, machine-readable way to identify specific error conditions.
type ErrorCode string

// Error code constants define standardized error identifiers across all exchanges.
const (
	// ErrCodeNetwork indicates a network connectivity failure.
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrCodeRateLimit indicates the rate limit was exceeded.
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT"
	// ErrCodeAuth indicates authentication or authorization failure.
	ErrCodeAuth ErrorCode = "AUTH_ERROR"
	// ErrCodeTimestamp indicates the venue rejected the request timestamp or recvWindow.
	ErrCodeTimestamp ErrorCode = "TIMESTAMP_OUTSIDE_WINDOW"
	// ErrCodeBadRequest indicates invalid request parameters.
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeOrderNotFound indicates the referenced order does not exist.
	ErrCodeOrderNotFound ErrorCode = "ORDER_NOT_FOUND"
	// ErrCodeServerError indicates a server-side error occurred.
	ErrCodeServerError ErrorCode = "SERVER_ERROR"
	// ErrCodeInsufficientFunds indicates the account lacks required balance.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	// ErrCodeInvalidOrder indicates the order violates exchange rules.
	ErrCodeInvalidOrder ErrorCode = "INVALID_ORDER"
	// ErrCodeInvalidSymbol indicates the trading pair is not recognized.
	ErrCodeInvalidSymbol ErrorCode = "INVALID_SYMBOL"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Signing errors
	ErrCodeClock ErrorCode = "CLOCK_UNAVAILABLE"

	// Unsupported operation
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED_METHOD"
)

// IsErrorCode checks if the error matches the specified error code.
// It extracts the exchange error and compares its code field against the provided ErrorCode.
func IsErrorCode(err error, code ErrorCode) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return ErrorCode(exErr.Code) == code
	}
	return false
}
