package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured is returned by every operation when the engine has no
	// state file configured. Fatal to the operation, not the process.
	ErrNotConfigured = errors.New("no state file configured")

	// ErrNotInitialized is returned when an operation is attempted before
	// Initialize has completed.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrCollectionNotRegistered is returned by Insert for an unknown collection.
	ErrCollectionNotRegistered = errors.New("collection not registered")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
)

// Violation describes one uniqueness conflict.
type Violation struct {
	// Attribute is the unique-constrained attribute name.
	Attribute string
	// Value is the conflicting value supplied by the caller.
	Value any
	// Index is the position of the colliding record within the collection,
	// or -1 when the violation is structural (multi-record unique update).
	Index int
}

func (v Violation) String() string {
	return fmt.Sprintf("%s=%v", v.Attribute, v.Value)
}

// UniquenessError carries every uniqueness violation found for an operation.
// Violations are collected, never short-circuited at the first conflict.
type UniquenessError struct {
	Collection string
	Violations []Violation
}

func (e *UniquenessError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("uniqueness violation on collection %q: %s",
		e.Collection, strings.Join(parts, ", "))
}
