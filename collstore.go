package collstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/collstore/collstore/blobstore"
	"github.com/collstore/collstore/engine"
	"github.com/collstore/collstore/model"
	"github.com/collstore/collstore/persistence"
)

// Convenience aliases so callers rarely need to import subpackages.
type (
	// Record is one stored row: attribute name to value.
	Record = model.Record
	// Query is an opaque match specification handed to the matcher.
	Query = model.Query
	// Schema maps attribute names to their definitions.
	Schema = model.Schema
	// AttributeDefinition describes one schema attribute.
	AttributeDefinition = model.AttributeDefinition
	// Matcher evaluates queries against a collection's records.
	Matcher = engine.Matcher
	// Aggregator post-processes matched rows.
	Aggregator = engine.Aggregator
	// Match is a Matcher's result.
	Match = engine.Match
)

// Store is a file-backed collection store. One Store owns one state file; all
// collections live in it together and are persisted together.
//
// A Store is safe for concurrent use.
type Store struct {
	engine *engine.Engine
	logger *zap.SugaredLogger
}

// Open loads or creates the store persisted as <identity>.db under dir.
//
// A missing state file starts the store empty; a file that exists but cannot
// be decoded fails Open with an error matching IsCorruptState. Collections
// passed via WithCollections are registered before Open returns.
func Open(ctx context.Context, dir, identity string, optFns ...func(o *Options)) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	store := opts.BlobStore
	if store == nil {
		store = blobstore.NewLocal(dir)
	}

	snapOpts := []persistence.Option{persistence.WithCodec(opts.Codec)}
	if opts.Compression {
		snapOpts = append(snapOpts, persistence.WithCompression())
	}
	snap := persistence.NewSnapshotter(store, identity+".db", snapOpts...)

	engOpts := []engine.Option{
		engine.WithLogger(opts.Logger),
		engine.WithCollections(opts.Collections),
		engine.WithQueueDepth(opts.QueueDepth),
	}
	if opts.Matcher != nil {
		engOpts = append(engOpts, engine.WithMatcher(opts.Matcher))
	}
	if opts.Aggregator != nil {
		engOpts = append(engOpts, engine.WithAggregator(opts.Aggregator))
	}
	if opts.WriteLimiter != nil {
		engOpts = append(engOpts, engine.WithWriteLimiter(opts.WriteLimiter))
	}

	eng := engine.New(snap, engOpts...)
	if err := eng.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("open store %s: %w", identity, err)
	}

	return &Store{engine: eng, logger: opts.Logger}, nil
}

// CreateCollection registers the schema, merging attribute-by-attribute into
// an existing collection of the same name, and persists the change. Returns
// the collection's resulting schema.
func (s *Store) CreateCollection(ctx context.Context, name string, schema Schema) (Schema, error) {
	return s.engine.CreateCollection(ctx, name, schema)
}

// RegisterCollection registers the schema in memory without persisting.
func (s *Store) RegisterCollection(name string, schema Schema) error {
	return s.engine.RegisterCollection(name, schema)
}

// Describe returns the collection's schema, or nil when the collection is
// unknown or has no attributes.
func (s *Store) Describe(name string) (Schema, error) {
	return s.engine.Describe(name)
}

// DropCollection removes the collection and any related collections, then
// blocks until the removal is durable on disk.
func (s *Store) DropCollection(ctx context.Context, name string, related ...string) error {
	return s.engine.DropCollection(ctx, name, related...)
}

// Insert stores a record after enforcing the collection's schema constraints
// and returns the record as stored, auto-increment values included. A
// uniqueness conflict returns a *UniquenessError listing every violation.
func (s *Store) Insert(ctx context.Context, collection string, values Record) (Record, error) {
	return s.engine.Insert(ctx, collection, values)
}

// Select returns the records matching query, after aggregation.
func (s *Store) Select(ctx context.Context, collection string, query Query) ([]Record, error) {
	return s.engine.Select(ctx, collection, query)
}

// Update merges values into every record matching query and returns the
// updated records.
func (s *Store) Update(ctx context.Context, collection string, query Query, values Record) ([]Record, error) {
	return s.engine.Update(ctx, collection, query, values)
}

// Destroy removes every record matching query.
func (s *Store) Destroy(ctx context.Context, collection string, query Query) error {
	return s.engine.Destroy(ctx, collection, query)
}

// Close flushes pending writes and releases the store. The store is unusable
// afterwards.
func (s *Store) Close() error {
	return s.engine.Close()
}
