// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrFeedUnavailable    = errors.New("quote feed unavailable")
	ErrMalformedFeed      = errors.New("malformed quote feed payload")
	ErrStoreUnavailable   = errors.New("remote store unavailable")
	ErrOrderRejected      = errors.New("order rejected")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrDataNotFound       = errors.New("data not found")
	ErrConfigInvalid      = errors.New("invalid configuration")
	ErrStaleResponse      = errors.New("response superseded by a newer cycle")
)

// FeedError represents a failure talking to or decoding the quote source.
// Feed errors are cycle-local: callers log them and retain prior state.
type FeedError struct {
	Endpoint string
	Message  string
	Err      error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed error [%s]: %s: %v", e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("feed error [%s]: %s", e.Endpoint, e.Message)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new FeedError.
func NewFeedError(endpoint, message string, err error) *FeedError {
	return &FeedError{
		Endpoint: endpoint,
		Message:  message,
		Err:      err,
	}
}

// StoreError represents an error from the remote store.
type StoreError struct {
	Collection string
	Op         string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s] %s: %v", e.Collection, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(collection, op string, err error) *StoreError {
	return &StoreError{
		Collection: collection,
		Op:         op,
		Err:        err,
	}
}

// OrderError represents an error related to order submission.
type OrderError struct {
	Code   string
	Side   string
	Reason string
	Err    error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error %s %s: %s: %v", e.Side, e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error %s %s: %s", e.Side, e.Code, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(code, side, reason string, err error) *OrderError {
	return &OrderError{
		Code:   code,
		Side:   side,
		Reason: reason,
		Err:    err,
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

// Wrapf wraps an error with a formatted message.
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
