package collstore

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/collstore/collstore/blobstore"
	"github.com/collstore/collstore/codec"
)

// Options configures a Store.
type Options struct {
	// Codec encodes the state file. Defaults to codec.Default.
	Codec codec.Codec

	// Compression enables zstd compression of the state file. Reads detect
	// compression automatically, so it can be toggled between opens.
	Compression bool

	// BlobStore overrides where the state file lives. When nil, a local
	// filesystem store rooted at the Open dir is used.
	BlobStore blobstore.Store

	// Logger receives debug and error events. Defaults to a no-op logger.
	Logger *zap.SugaredLogger

	// Collections are registered during Open, before the store is usable.
	Collections map[string]Schema

	// Matcher evaluates queries. Defaults to match-all.
	Matcher Matcher

	// Aggregator post-processes matched rows. Defaults to passthrough.
	Aggregator Aggregator

	// QueueDepth bounds the write queue.
	QueueDepth int

	// WriteLimiter optionally throttles the write worker, coalescing bursts
	// of mutations into fewer disk writes.
	WriteLimiter *rate.Limiter
}

func defaultOptions() Options {
	return Options{
		Codec:  codec.Default,
		Logger: zap.NewNop().Sugar(),
	}
}

// WithCodec sets the state file encoding.
func WithCodec(c codec.Codec) func(o *Options) {
	return func(o *Options) {
		if c != nil {
			o.Codec = c
		}
	}
}

// WithCompression enables zstd compression of the state file.
func WithCompression() func(o *Options) {
	return func(o *Options) { o.Compression = true }
}

// WithBlobStore stores the state file through the given store instead of the
// local filesystem.
func WithBlobStore(s blobstore.Store) func(o *Options) {
	return func(o *Options) { o.BlobStore = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) func(o *Options) {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithCollections sets the collection definitions registered during Open.
func WithCollections(definitions map[string]Schema) func(o *Options) {
	return func(o *Options) { o.Collections = definitions }
}

// WithMatcher sets the query evaluator.
func WithMatcher(m Matcher) func(o *Options) {
	return func(o *Options) { o.Matcher = m }
}

// WithAggregator sets the aggregate processor.
func WithAggregator(a Aggregator) func(o *Options) {
	return func(o *Options) { o.Aggregator = a }
}

// WithQueueDepth bounds the write queue.
func WithQueueDepth(depth int) func(o *Options) {
	return func(o *Options) { o.QueueDepth = depth }
}

// WithWriteLimiter throttles the write worker.
func WithWriteLimiter(l *rate.Limiter) func(o *Options) {
	return func(o *Options) { o.WriteLimiter = l }
}
