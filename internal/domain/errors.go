package domain

import (
	"errors"
	"strconv"
	"time"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "get_investments", "sell")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// RateLimitError is returned by the read API when the server throttles an operation.
type RateLimitError struct {
	Op         string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Op + ": rate limited, retry after " + e.RetryAfter.String()
}

// IsRetriable is true: the call may be repeated once the cool-down passes.
func (e *RateLimitError) IsRetriable() bool {
	return true
}

// AsRateLimit unwraps a RateLimitError from err.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// StatusError is a non-2xx response that is not a rate limit.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return e.Op + ": unexpected status " + strconv.Itoa(e.StatusCode)
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FieldError reports a snapshot field a rule needed but could not use.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// MissingField builds a FieldError for an absent field.
func MissingField(field string) *FieldError {
	return &FieldError{Field: field, Err: ErrMissingField}
}

var (
	// ErrConnectionFailed is returned when the event feed connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrMissingField is returned when a snapshot lacks a field a rule depends on.
	ErrMissingField = errors.New("missing field")

	// ErrMalformedField is returned when a field is present but unusable (e.g. zero denominator).
	ErrMalformedField = errors.New("malformed field")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
