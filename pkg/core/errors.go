package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants classify every failure a capability call can return.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeTransport indicates a network-level failure (DNS, refused connection, timeout).
	ErrorTypeTransport
	// ErrorTypeAPI indicates the venue answered with a non-200 HTTP status.
	ErrorTypeAPI
	// ErrorTypeDecode indicates the response body did not match the expected JSON shape.
	ErrorTypeDecode
	// ErrorTypeClock indicates the timestamp source was unavailable while signing.
	ErrorTypeClock
	// ErrorTypeNotFound indicates the queried entity is absent from the response set.
	ErrorTypeNotFound
	// ErrorTypeUnsupported indicates the capability is not implemented by this venue binding.
	ErrorTypeUnsupported
	// ErrorTypeBadRequest indicates the caller supplied invalid arguments.
	ErrorTypeBadRequest
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return "UNKNOWN"
	}
	return errorTypeNames[t]
}

var errorTypeNames = [...]string{
	"UNKNOWN",
	"TRANSPORT",
	"API",
	"DECODE",
	"CLOCK",
	"NOT_FOUND",
	"UNSUPPORTED",
	"BAD_REQUEST",
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
)

// ExchangeError represents a classified failure of a capability call.
// Callers branch on Type rather than on the message text.
type ExchangeError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response, zero when no response was received.
	StatusCode int `json:"status_code"`
	// Code is a canonical or venue-specific error code, when one is known.
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Body is the raw (possibly truncated) response body for API and decode errors.
	Body string `json:"body,omitempty"`
	// Exchange identifies which exchange binding produced this error.
	Exchange string `json:"exchange"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface for ExchangeError.
func (e *ExchangeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Exchange, e.Type, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Exchange, e.Type, e.StatusCode, msg)
}

// Unwrap returns the underlying cause.
func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// WithCode sets the error code and returns the error for chaining.
func (e *ExchangeError) WithCode(code ErrorCode) *ExchangeError {
	e.Code = string(code)
	return e
}

// WithBody attaches a summary of the raw response body.
func (e *ExchangeError) WithBody(body []byte) *ExchangeError {
	e.Body = summarize(body)
	return e
}

// NewExchangeError creates a new ExchangeError with the specified details.
// The timestamp is automatically set to the current time.
func NewExchangeError(exchange string, errorType ErrorType, statusCode int, message string) *ExchangeError {
	return &ExchangeError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Exchange:   exchange,
		Timestamp:  time.Now(),
	}
}

// NewTransportError wraps a network-level failure.
func NewTransportError(exchange string, cause error) *ExchangeError {
	e := NewExchangeError(exchange, ErrorTypeTransport, 0, "transport failure")
	e.Err = cause
	return e.WithCode(ErrCodeNetwork)
}

// NewAPIError reports a non-200 response. The body is kept verbatim (truncated) and not interpreted.
func NewAPIError(exchange string, statusCode int, body []byte) *ExchangeError {
	e := NewExchangeError(exchange, ErrorTypeAPI, statusCode, fmt.Sprintf("unexpected http status %d", statusCode))
	return e.WithBody(body)
}

// NewDecodeError reports a response body that could not be mapped onto the expected shape.
func NewDecodeError(exchange, what string, body []byte, cause error) *ExchangeError {
	e := NewExchangeError(exchange, ErrorTypeDecode, 0, "decode "+what)
	e.Err = cause
	return e.WithBody(body)
}

// NewClockError reports an unavailable timestamp source.
func NewClockError(exchange string, cause error) *ExchangeError {
	e := NewExchangeError(exchange, ErrorTypeClock, 0, "timestamp source unavailable")
	e.Err = cause
	return e.WithCode(ErrCodeClock)
}

// NewNotFoundError reports an entity missing from an otherwise valid response.
func NewNotFoundError(exchange, message string) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeNotFound, 0, message).WithCode(ErrCodeNotFound)
}

// NewUnsupportedError reports a capability the binding does not implement.
func NewUnsupportedError(exchange string, op Operation) *ExchangeError {
	return NewExchangeError(exchange, ErrorTypeUnsupported, 0, op.String()+" is not supported").
		WithCode(ErrCodeUnsupported)
}

// NewBadRequestError reports invalid caller input detected before any request is sent.
func NewBadRequestError(exchange string, cause error) *ExchangeError {
	e := NewExchangeError(exchange, ErrorTypeBadRequest, 0, "invalid request")
	e.Err = cause
	return e.WithCode(ErrCodeBadRequest)
}

func errorOfType(err error, t ErrorType) bool {
	var e *ExchangeError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsTransportError returns true if the error is a network-level failure.
func IsTransportError(err error) bool {
	return errorOfType(err, ErrorTypeTransport)
}

// IsAPIError returns true if the venue answered with a non-200 status.
func IsAPIError(err error) bool {
	return errorOfType(err, ErrorTypeAPI)
}

// IsDecodeError returns true if a response body could not be decoded.
func IsDecodeError(err error) bool {
	return errorOfType(err, ErrorTypeDecode)
}

// IsClockError returns true if signing failed because no timestamp was available.
func IsClockError(err error) bool {
	return errorOfType(err, ErrorTypeClock)
}

// IsNotFound returns true if the queried entity was absent.
// It is distinct from a zero value: an asset with no balance is still found.
func IsNotFound(err error) bool {
	return errorOfType(err, ErrorTypeNotFound)
}

// IsUnsupported returns true if the capability is not implemented by the binding.
func IsUnsupported(err error) bool {
	return errorOfType(err, ErrorTypeUnsupported)
}

// IsBadRequest returns true if the caller input was rejected before sending.
func IsBadRequest(err error) bool {
	return errorOfType(err, ErrorTypeBadRequest)
}

const maxBodySummary = 512

func summarize(body []byte) string {
	if len(body) <= maxBodySummary {
		return string(body)
	}
	return string(body[:maxBodySummary]) + "...(truncated)"
}
