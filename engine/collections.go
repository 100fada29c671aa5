package engine

import (
	"context"

	"github.com/collstore/collstore/model"
)

// registerLocked creates the collection if absent, otherwise merges the
// supplied schema attribute-by-attribute, and recompiles the runtime kinds.
// Caller holds e.mu.
func (e *Engine) registerLocked(name string, schema model.Schema) {
	existing, ok := e.state.Schema[name]
	if !ok {
		existing = make(model.Schema, len(schema))
		e.state.Schema[name] = existing
	}
	for attr, def := range schema {
		existing[attr] = def.Clone()
	}

	if _, ok := e.state.Data[name]; !ok {
		e.state.Data[name] = []model.Record{}
	}
	if _, ok := e.state.Counters[name]; !ok {
		e.state.Counters[name] = model.Counters{}
	}

	e.kinds[name] = existing.Compile()
}

// removeLocked drops a collection's data, schema and counters.
// Caller holds e.mu.
func (e *Engine) removeLocked(name string) {
	delete(e.state.Data, name)
	delete(e.state.Schema, name)
	delete(e.state.Counters, name)
	delete(e.kinds, name)
}

// registeredLocked reports whether the collection is known to the store.
func (e *Engine) registeredLocked(name string) bool {
	_, ok := e.kinds[name]
	return ok
}

// RegisterCollection registers a schema in memory without persisting.
// Used by the dispatch layer for collections whose definitions are managed
// externally; CreateCollection is the durable variant.
func (e *Engine) RegisterCollection(name string, schema model.Schema) error {
	if e.snap == nil {
		return ErrNotConfigured
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return err
	}
	e.registerLocked(name, schema)
	return nil
}

// CreateCollection registers or merges the schema, enqueues a persistence
// request and returns the resulting schema.
func (e *Engine) CreateCollection(ctx context.Context, name string, schema model.Schema) (model.Schema, error) {
	if e.snap == nil {
		return nil, ErrNotConfigured
	}

	result, err := e.create(name, schema)
	if err != nil {
		return nil, err
	}

	e.logger.Debugw("collection created", "collection", name, "attributes", len(result))
	return result, nil
}

func (e *Engine) create(name string, schema model.Schema) (model.Schema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return nil, err
	}
	e.registerLocked(name, schema)
	e.queue.enqueue()
	return e.state.Schema[name].Clone(), nil
}

// Describe returns the collection's schema, or nil when the collection is
// unknown or its schema has no attributes.
func (e *Engine) Describe(name string) (model.Schema, error) {
	if e.snap == nil {
		return nil, ErrNotConfigured
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return nil, err
	}

	schema := e.state.Schema[name]
	if len(schema) == 0 {
		return nil, nil
	}
	return schema.Clone(), nil
}

// DropCollection removes the collection and each related collection's data,
// schema and counters, then blocks until the resulting write is durable.
// Unlike the other mutators, drop treats persistence as a completion gate.
func (e *Engine) DropCollection(ctx context.Context, name string, related ...string) error {
	if e.snap == nil {
		return ErrNotConfigured
	}

	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.removeLocked(name)
	for _, rel := range related {
		e.removeLocked(rel)
	}
	e.mu.Unlock()

	// The awaited enqueue cannot run under e.mu: the worker snapshots the
	// state under the same lock while servicing.
	if err := e.queue.enqueueWait(); err != nil {
		return err
	}

	e.logger.Debugw("collection dropped", "collection", name, "related", related)
	return nil
}
