// Package blobstore abstracts where the persisted state file lives.
//
// The engine reads and writes its state as one opaque blob; backends decide
// how that blob is stored (local filesystem, in-memory, S3, MinIO).
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store reads and writes named blobs.
type Store interface {
	// Get returns the full contents of the named blob,
	// or ErrNotFound if it does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put atomically replaces the named blob with data.
	Put(ctx context.Context, name string, data []byte) error

	// Ensure creates the named blob empty if it does not exist yet.
	// Used so that an unwritable target surfaces distinctly, before any
	// state has been encoded.
	Ensure(ctx context.Context, name string) error
}
