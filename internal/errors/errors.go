// Package errors defines the typed errors shared by the monitor pipeline.
// Every failure a scan cycle can hit maps to one ErrorType so callers can
// decide between "abandon this cycle" and "log and carry on".
package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeMalformedTopology    ErrorType = "MALFORMED_TOPOLOGY"
	ErrorTypeQuerySource          ErrorType = "QUERY_SOURCE"
	ErrorTypeNotificationDelivery ErrorType = "NOTIFICATION_DELIVERY"
	ErrorTypeValidation           ErrorType = "VALIDATION"
	ErrorTypeInternal             ErrorType = "INTERNAL"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewMalformedTopology reports a topology document that does not conform
// to the expected shape.
func NewMalformedTopology(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeMalformedTopology,
		Message: message,
		Err:     err,
	}
}

// NewQuerySource reports a topology source that failed or produced nothing.
func NewQuerySource(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeQuerySource,
		Message: message,
		Err:     err,
	}
}

// NewNotificationDelivery reports a sink that could not deliver a message.
func NewNotificationDelivery(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeNotificationDelivery,
		Message: message,
		Err:     err,
	}
}

// NewValidation creates a validation error
func NewValidation(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Err:     err,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeInternal when err
// is not an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Type checking functions

// IsMalformedTopology checks if an error is a malformed topology error
func IsMalformedTopology(err error) bool {
	return is(err, ErrorTypeMalformedTopology)
}

// IsQuerySource checks if an error is a topology source error
func IsQuerySource(err error) bool {
	return is(err, ErrorTypeQuerySource)
}

// IsNotificationDelivery checks if an error is a delivery error
func IsNotificationDelivery(err error) bool {
	return is(err, ErrorTypeNotificationDelivery)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return is(err, ErrorTypeValidation)
}

func is(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}
