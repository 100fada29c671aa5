// Package engine implements the file-backed collection storage engine: an
// in-memory store of named collections with schema-driven constraints, and a
// single-writer durability protocol persisting the whole state to one blob.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/collstore/collstore/model"
	"github.com/collstore/collstore/persistence"
	"go.uber.org/zap"
)

// Engine owns the canonical runtime state for one store instance.
//
// All reads and in-memory mutations are synchronous under a single lock that
// guards data, schema and counters together, so a constraint check and the
// mutation it gates are one atomic step. The only suspending work is disk
// I/O, confined to the write queue's worker and to Initialize.
type Engine struct {
	mu sync.Mutex

	state *model.State
	// kinds holds the compiled schema per collection, rebuilt at
	// registration. Presence of a collection key means "registered".
	kinds map[string]map[string]model.Kind

	snap  *persistence.Snapshotter // nil means not configured
	queue *writeQueue

	matcher     Matcher
	aggregator  Aggregator
	logger      *zap.SugaredLogger
	definitions map[string]model.Schema

	loaded      bool // state already held in memory; Initialize skips the load
	initialized bool
	closed      bool
}

// New creates an engine bound to the given snapshotter. A nil snapshotter is
// allowed and produces an engine whose operations all fail with
// ErrNotConfigured, mirroring a store that never received a file path.
//
// The engine is not usable until Initialize has completed.
func New(snap *persistence.Snapshotter, opts ...Option) *Engine {
	e := &Engine{
		state:       model.NewState(),
		kinds:       make(map[string]map[string]model.Kind),
		snap:        snap,
		matcher:     matchAll{},
		aggregator:  passthrough{},
		logger:      zap.NewNop().Sugar(),
		definitions: make(map[string]model.Schema),
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.matcher != nil {
		e.matcher = o.matcher
	}
	if o.aggregator != nil {
		e.aggregator = o.aggregator
	}
	if o.logger != nil {
		e.logger = o.logger
	}
	for name, def := range o.definitions {
		e.definitions[name] = def.Clone()
	}

	e.queue = newWriteQueue(o.queueDepth, o.limiter, e.snapshotState, e.persist, e.logger)
	return e
}

// Initialize loads the persisted state (unless already held in memory) and
// registers every configured collection definition. It must complete before
// any record operation is accepted.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.snap == nil {
		return ErrNotConfigured
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.initialized {
		return nil
	}

	if !e.loaded {
		st, err := e.snap.Read(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		e.state = st
		e.loaded = true

		// Compile schemas recovered from disk and make sure every recovered
		// collection has its data slice and counters map.
		for name, schema := range e.state.Schema {
			e.kinds[name] = schema.Compile()
			if _, ok := e.state.Data[name]; !ok {
				e.state.Data[name] = []model.Record{}
			}
			if _, ok := e.state.Counters[name]; !ok {
				e.state.Counters[name] = model.Counters{}
			}
		}
	}

	// Deterministic registration order.
	names := make([]string, 0, len(e.definitions))
	for name := range e.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.registerLocked(name, e.definitions[name])
	}

	e.queue.start()
	e.initialized = true

	e.logger.Debugw("engine initialized",
		"file", e.snap.Name(), "collections", len(e.state.Schema))
	return nil
}

// Close drains pending persistence requests and stops the write worker.
// The last serviced request reflects the final in-memory state.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	started := e.initialized
	e.closed = true
	e.mu.Unlock()

	if started {
		e.queue.close()
	}
	return nil
}

// readyLocked gates every operation on lifecycle state. Caller holds e.mu.
// Checking inside the critical section that performs the mutation means a
// mutation can never slip in between Close marking the engine closed and the
// queue's final drain.
func (e *Engine) readyLocked() error {
	if e.closed {
		return ErrClosed
	}
	if !e.initialized {
		return ErrNotInitialized
	}
	return nil
}

// snapshotState deep-copies the state under the lock. The write queue's
// worker calls this right before a disk write, so disk latency never blocks
// in-memory operations.
func (e *Engine) snapshotState() *model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) persist(ctx context.Context, st *model.State) error {
	return e.snap.Write(ctx, st)
}
