package core

import "fmt"

// ErrorType represents the kind of failure that occurred.
type ErrorType string

const (
	// ErrorTypeNotFound indicates a requested entity is not cached and
	// could not be obtained.
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeCommunication indicates a transport failure or timeout
	// while talking to the API.
	ErrorTypeCommunication ErrorType = "communication_error"
	// ErrorTypeDeserialization indicates a response could not be parsed.
	ErrorTypeDeserialization ErrorType = "deserialization_error"
	// ErrorTypeInvalidOperation indicates a programming or registration
	// error, fatal at construction time.
	ErrorTypeInvalidOperation ErrorType = "invalid_operation_error"
	// ErrorTypeConflict indicates a DTO tag did not match the concrete
	// payload it arrived with; the item is treated as not saved.
	ErrorTypeConflict ErrorType = "conflict_error"
)

// FeedError is the base error type for all SDK errors.
type FeedError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *FeedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(message string) *FeedError {
	return &FeedError{Type: ErrorTypeNotFound, Message: message}
}

// NewCommunicationError creates a new communication error.
func NewCommunicationError(message string, err error) *FeedError {
	return &FeedError{Type: ErrorTypeCommunication, Message: message, Err: err}
}

// NewDeserializationError creates a new deserialization error.
func NewDeserializationError(message string, err error) *FeedError {
	return &FeedError{Type: ErrorTypeDeserialization, Message: message, Err: err}
}

// NewInvalidOperationError creates a new invalid operation error.
func NewInvalidOperationError(message string, err error) *FeedError {
	return &FeedError{Type: ErrorTypeInvalidOperation, Message: message, Err: err}
}

// NewConflictError creates a new DTO/cache-item type conflict error.
func NewConflictError(message string) *FeedError {
	return &FeedError{Type: ErrorTypeConflict, Message: message}
}

// ExceptionStrategy selects how user-facing lookup methods behave when
// the requested value cannot be produced: propagate the error, or
// return a safe zero value and swallow it.
type ExceptionStrategy string

const (
	// ExceptionStrategyThrow propagates errors to the caller.
	ExceptionStrategyThrow ExceptionStrategy = "throw"
	// ExceptionStrategyCatch logs errors and returns safe defaults.
	ExceptionStrategyCatch ExceptionStrategy = "catch"
)
