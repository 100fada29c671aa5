// Package persistence serializes the full engine state to a single blob and
// reconstructs it on startup.
//
// The whole state (data, schema, counters) is always written together; a read
// immediately after a completed write reproduces the full state. A missing
// blob is created empty and yields an empty state; a blob that exists but
// cannot be decoded is a *ParseError, never silently treated as empty.
package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/collstore/collstore/blobstore"
	"github.com/collstore/collstore/codec"
	"github.com/collstore/collstore/model"
	"github.com/klauspost/compress/zstd"
)

// ParseError indicates a state blob that exists but cannot be decoded.
//
// The underlying decode error can be accessed via errors.Unwrap.
type ParseError struct {
	Name  string
	cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("state file %s is corrupt: %v", e.Name, e.cause)
}

func (e *ParseError) Unwrap() error { return e.cause }

// zstd frame magic number, used to detect compressed state blobs on read.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Snapshotter reads and writes one named state blob through a blobstore.
type Snapshotter struct {
	store    blobstore.Store
	name     string
	codec    codec.Codec
	compress bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithCodec sets the state encoding. If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(s *Snapshotter) {
		if c == nil {
			c = codec.Default
		}
		s.codec = c
	}
}

// WithCompression enables zstd compression of written state blobs.
// Reads always detect compression by frame magic, so a store can be switched
// between compressed and plain without migration.
func WithCompression() Option {
	return func(s *Snapshotter) {
		s.compress = true
	}
}

// NewSnapshotter creates a Snapshotter bound to one blob name.
func NewSnapshotter(store blobstore.Store, name string, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		store: store,
		name:  name,
		codec: codec.Default,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Errors are impossible here: both constructors only fail on
	// invalid options, and none are passed.
	s.enc, _ = zstd.NewWriter(nil)
	s.dec, _ = zstd.NewReader(nil)

	return s
}

// Name returns the blob name the snapshotter is bound to.
func (s *Snapshotter) Name() string { return s.name }

// Write serializes the entire state and atomically replaces the blob.
// The target is created first so that an unwritable path surfaces before any
// encoding work.
func (s *Snapshotter) Write(ctx context.Context, st *model.State) error {
	if err := s.store.Ensure(ctx, s.name); err != nil {
		return fmt.Errorf("create state file %s: %w", s.name, err)
	}

	data, err := s.codec.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if s.compress {
		data = s.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	if err := s.store.Put(ctx, s.name, data); err != nil {
		return fmt.Errorf("write state file %s: %w", s.name, err)
	}
	return nil
}

// Read loads the state blob.
//
// A missing blob is created empty and an empty state returned. An empty blob
// decodes to an empty state. Anything else must decode cleanly or Read
// returns a *ParseError.
func (s *Snapshotter) Read(ctx context.Context) (*model.State, error) {
	data, err := s.store.Get(ctx, s.name)
	if errors.Is(err, blobstore.ErrNotFound) {
		if err := s.store.Ensure(ctx, s.name); err != nil {
			return nil, fmt.Errorf("create state file %s: %w", s.name, err)
		}
		return model.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", s.name, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return model.NewState(), nil
	}

	if bytes.HasPrefix(data, zstdMagic) {
		data, err = s.dec.DecodeAll(data, nil)
		if err != nil {
			return nil, &ParseError{Name: s.name, cause: err}
		}
	}

	st := model.NewState()
	if err := s.codec.Unmarshal(data, st); err != nil {
		return nil, &ParseError{Name: s.name, cause: err}
	}
	st.Normalize()
	return st, nil
}
