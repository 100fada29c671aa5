package engine

import (
	"github.com/collstore/collstore/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type options struct {
	matcher     Matcher
	aggregator  Aggregator
	logger      *zap.SugaredLogger
	definitions map[string]model.Schema
	queueDepth  int
	limiter     *rate.Limiter
}

func defaultOptions() options {
	return options{queueDepth: 64}
}

// Option configures the engine.
type Option func(*options)

// WithMatcher sets the external criteria evaluator.
// If unset, a match-all evaluator is used.
func WithMatcher(m Matcher) Option {
	return func(o *options) { o.matcher = m }
}

// WithAggregator sets the external aggregate processor.
// If unset, results pass through unchanged.
func WithAggregator(a Aggregator) Option {
	return func(o *options) { o.aggregator = a }
}

// WithLogger sets the logger. If unset, logging is disabled.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCollections sets the collection definitions registered during
// Initialize, before the engine is considered ready.
func WithCollections(definitions map[string]model.Schema) Option {
	return func(o *options) { o.definitions = definitions }
}

// WithQueueDepth bounds the write queue. When the queue is full,
// fire-and-forget persistence requests coalesce with a pending one.
func WithQueueDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.queueDepth = depth
		}
	}
}

// WithWriteLimiter throttles the write worker, coalescing bursts of
// mutations into fewer disk writes. Off by default: every request that is
// not coalesced produces its own write.
func WithWriteLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}
