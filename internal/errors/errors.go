// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrTokenRequired    = errors.New("api token required for symbol")
	ErrEmptyResults     = errors.New("quote returned no results")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrNotConfigured    = errors.New("dispatcher not configured")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrDatabaseError    = errors.New("database error")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// QuoteError represents a failure fetching a quote from the price API.
type QuoteError struct {
	Symbol string
	Status int
	Reason string
	Err    error
}

func (e *QuoteError) Error() string {
	msg := fmt.Sprintf("quote error [%s]", e.Symbol)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *QuoteError) Unwrap() error {
	return e.Err
}

// NewQuoteError creates a new QuoteError.
func NewQuoteError(symbol string, status int, reason string, err error) *QuoteError {
	return &QuoteError{
		Symbol: symbol,
		Status: status,
		Reason: reason,
		Err:    err,
	}
}

// DispatchError represents a failure delivering a notification.
type DispatchError struct {
	Channel string
	Reason  string
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch error [%s]: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("dispatch error [%s]: %s", e.Channel, e.Reason)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(channel, reason string, err error) *DispatchError {
	return &DispatchError{
		Channel: channel,
		Reason:  reason,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets errors.Is match ErrConfigInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Reason returns a short label for err, suitable for metrics labels.
func Reason(err error) string {
	var qe *QuoteError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTokenRequired):
		return "token_required"
	case errors.Is(err, ErrEmptyResults):
		return "empty_results"
	case errors.Is(err, ErrPriceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &qe) && qe.Status != 0:
		return "bad_status"
	default:
		return "transport"
	}
}
