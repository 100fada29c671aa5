package collstore

import (
	"errors"

	"github.com/collstore/collstore/engine"
	"github.com/collstore/collstore/persistence"
)

// Sentinel errors re-exported from the engine so callers can match them
// without importing subpackages.
var (
	// ErrNotConfigured is returned when the store has no state file configured.
	ErrNotConfigured = engine.ErrNotConfigured

	// ErrNotInitialized is returned when an operation runs before Open completed.
	ErrNotInitialized = engine.ErrNotInitialized

	// ErrCollectionNotRegistered is returned by Insert for an unknown collection.
	ErrCollectionNotRegistered = engine.ErrCollectionNotRegistered

	// ErrClosed is returned after Close.
	ErrClosed = engine.ErrClosed
)

// UniquenessError carries every uniqueness violation found for an operation.
type UniquenessError = engine.UniquenessError

// Violation describes one uniqueness conflict.
type Violation = engine.Violation

// IsCorruptState reports whether err indicates a state file that exists but
// cannot be decoded, as opposed to ordinary I/O failure.
func IsCorruptState(err error) bool {
	var perr *persistence.ParseError
	return errors.As(err, &perr)
}
