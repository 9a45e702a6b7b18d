package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound      = errors.New("resource not found")
	ErrStageNotFound = fmt.Errorf("%w: stage", ErrNotFound)

	// Navigation errors
	ErrPrerequisiteUnmet = errors.New("stage prerequisite unmet")

	// Session consistency errors
	ErrStaleResponse  = errors.New("response superseded by a newer session state")
	ErrSchemaMismatch = errors.New("cached session schema version mismatch")

	// Concurrency errors
	ErrActionInFlight = errors.New("action already in flight")
)

// NewNotFoundError names the missing resource
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
}

// NewPrerequisiteError reports which stage refused activation and why
func NewPrerequisiteError(stage string, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrPrerequisiteUnmet, stage, reason)
}

// NewInFlightError names the action that is still outstanding
func NewInFlightError(action string) error {
	return fmt.Errorf("%w: %s", ErrActionInFlight, action)
}

// IsNotFoundError reports whether err wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStale reports whether err means a late response was discarded
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleResponse)
}
