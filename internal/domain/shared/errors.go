// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Handlers branch on these with errors.Is, the
// HTTP layer maps them to status codes.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidWindow = errors.New("invalid time window")

	// ErrPartialRead marks a metrics read that covered only part of a
	// scope's members.
	ErrPartialRead = errors.New("partial read failure")

	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrTimeout             = errors.New("operation timeout")

	ErrExternalService = errors.New("external service error")
)

// DomainError ties an error kind to the domain and operation it came from,
// keeping error text like "leaderboard.Compute: ..." uniform everywhere.
type DomainError struct {
	Domain  string // "leaderboard", "achievement", "streak"
	Op      string // failing operation, "Compute", "Save"
	Kind    error  // sentinel for errors.Is
	Message string
	Err     error // wrapped cause, optional
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the wrapped cause, so a caller's
// errors.Is works no matter which one it asks about.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError builds a DomainError without a wrapped cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError builds a DomainError around an underlying error.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Leaderboard domain errors
var (
	ErrScopeNotFound    = NewDomainError("leaderboard", "Resolve", ErrNotFound, "scope not found")
	ErrUserNotFound     = NewDomainError("leaderboard", "ReadMetrics", ErrNotFound, "user not found")
	ErrSnapshotNotFound = NewDomainError("leaderboard", "FindSnapshot", ErrNotFound, "snapshot not found")
	ErrInvalidLimit     = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "limit must be between 1 and 100")
)

// Period domain errors
var (
	ErrStartAfterEnd    = NewDomainError("period", "Resolve", ErrInvalidWindow, "start date is after end date")
	ErrUnknownPeriod    = NewDomainError("period", "Resolve", ErrInvalidWindow, "unknown period type")
	ErrNoPreviousWindow = NewDomainError("period", "Previous", ErrInvalidWindow, "custom window has no previous window")
)

// Achievement domain errors
var (
	ErrAchievementExists = NewDomainError("achievement", "Award", ErrAlreadyExists, "achievement already earned")
	ErrUnknownCategory   = NewDomainError("achievement", "Validate", ErrInvalidInput, "unknown achievement category")
)

// validationKinds lists every sentinel IsValidation treats as client fault.
var validationKinds = []error{
	ErrValidation,
	ErrInvalidID,
	ErrInvalidInput,
	ErrEmptyValue,
	ErrNegativeValue,
	ErrValueOutOfRange,
}

// IsNotFound reports whether err means a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidWindow reports whether err is a bad period or date range.
func IsInvalidWindow(err error) bool {
	return errors.Is(err, ErrInvalidWindow)
}

// IsValidation reports whether err is any kind of bad input.
func IsValidation(err error) bool {
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPersistenceConflict)
}

// IsRetryable reports whether the failed operation is worth another try.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceConflict) || errors.Is(err, ErrTimeout)
}
