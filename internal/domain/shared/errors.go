// Package shared contains error kinds and small value types used across the
// league domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Infrastructure errors
	ErrInternal = errors.New("internal error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "score", "ranking", "player"
	Op      string // Operation that failed, e.g., "Submit", "Recompute"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Player domain errors
var (
	ErrPlayerNotFound    = NewDomainError("player", "Find", ErrNotFound, "player not found")
	ErrInvalidTelegramID = NewDomainError("player", "Validate", ErrInvalidID, "invalid Telegram ID")
)

// Score domain errors
var (
	ErrScoreAlreadySubmitted = NewDomainError("score", "Save", ErrAlreadyExists, "score already submitted for this game")
	ErrScoreNotFound         = NewDomainError("score", "Find", ErrNotFound, "score not found")
)

// Ranking domain errors
var (
	ErrNoFinalizedWeek   = NewDomainError("ranking", "LatestWeek", ErrNotFound, "no finalized week yet")
	ErrInvalidWeekStart  = NewDomainError("ranking", "Validate", ErrInvalidInput, "week start must be a Monday")
	ErrInvalidGameNumber = NewDomainError("ranking", "Validate", ErrInvalidInput, "game number must be positive")
	ErrCloseInProgress   = NewDomainError("ranking", "CloseWeek", ErrInvalidState, "week close already in progress")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrValueOutOfRange)
}
