package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/collstore/collstore/model"
)

// Insert validates values against the collection's schema, commits the
// resulting record and enqueues a persistence request. Constraint order:
// uniqueness (reject before any mutation), auto-increment, type coercion,
// commit. A nil values map inserts an empty record. Returns the stored
// record.
func (e *Engine) Insert(ctx context.Context, name string, values model.Record) (model.Record, error) {
	if e.snap == nil {
		return nil, ErrNotConfigured
	}

	record, err := e.insert(name, values)
	if err != nil {
		return nil, err
	}

	e.logger.Debugw("record inserted", "collection", name)
	return record, nil
}

func (e *Engine) insert(name string, values model.Record) (model.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return nil, err
	}
	if !e.registeredLocked(name) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotRegistered, name)
	}
	if violations := e.checkUniquenessLocked(name, values); len(violations) > 0 {
		return nil, &UniquenessError{Collection: name, Violations: violations}
	}

	record := values.Clone()
	if record == nil {
		record = model.Record{}
	}
	e.applyAutoIncrementLocked(name, record)
	e.coerceTypesLocked(name, record)
	e.state.Data[name] = append(e.state.Data[name], record)

	// Enqueued under the lock: a racing Close observes the request in the
	// channel and the shutdown drain persists it.
	e.queue.enqueue()
	return record.Clone(), nil
}

// Select matches records via the external criteria evaluator, hands them to
// the external aggregate processor and returns its result set. Aggregator
// errors are surfaced unchanged.
func (e *Engine) Select(ctx context.Context, name string, query model.Query) ([]model.Record, error) {
	if e.snap == nil {
		return nil, ErrNotConfigured
	}

	results, err := e.evaluate(name, query)
	if err != nil {
		return nil, err
	}

	// Aggregation runs outside the lock; results are already copies.
	return e.aggregator.Aggregate(query, results)
}

func (e *Engine) evaluate(name string, query model.Query) ([]model.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return nil, err
	}
	match, err := e.matcher.Evaluate(name, e.state.Data[name], query)
	if err != nil {
		return nil, err
	}
	return e.materializeLocked(name, match), nil
}

// Update matches records, applies a shallow field merge to each and enqueues
// one persistence request regardless of how many records were touched.
// Returns deep copies of every post-update record.
//
// Unique-constrained attributes in values are subject to a conservative
// re-check: more than one matched record is always rejected, and a single
// matched record only passes when each unique value equals the record's
// current value. Update cannot introduce a uniqueness-relevant change.
func (e *Engine) Update(ctx context.Context, name string, query model.Query, values model.Record) ([]model.Record, error) {
	if e.snap == nil {
		return nil, ErrNotConfigured
	}

	updated, err := e.update(name, query, values)
	if err != nil {
		return nil, err
	}

	e.logger.Debugw("records updated", "collection", name, "count", len(updated))
	return updated, nil
}

func (e *Engine) update(name string, query model.Query, values model.Record) ([]model.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return nil, err
	}

	records := e.state.Data[name]
	match, err := e.matcher.Evaluate(name, records, query)
	if err != nil {
		return nil, err
	}

	if uniqueAttrs := e.uniqueAttrsInLocked(name, values); len(uniqueAttrs) > 0 {
		var violations []Violation
		switch {
		case len(match.Indices) > 1:
			// A unique value cannot hold across N>1 targets.
			for _, attr := range uniqueAttrs {
				violations = append(violations, Violation{Attribute: attr, Value: values[attr], Index: -1})
			}
		case len(match.Indices) == 1:
			current := records[match.Indices[0]]
			for _, attr := range uniqueAttrs {
				if !equalValues(current[attr], values[attr]) {
					violations = append(violations, Violation{Attribute: attr, Value: values[attr], Index: match.Indices[0]})
				}
			}
		}
		if len(violations) > 0 {
			return nil, &UniquenessError{Collection: name, Violations: violations}
		}
	}

	updated := make([]model.Record, 0, len(match.Indices))
	for _, idx := range match.Indices {
		if idx < 0 || idx >= len(records) {
			continue
		}
		if records[idx] == nil {
			// A record decoded from JSON null is a nil map.
			records[idx] = model.Record{}
		}
		for field, value := range values {
			records[idx][field] = model.CloneValue(value)
		}
		updated = append(updated, records[idx].Clone())
	}

	e.queue.enqueue()
	return updated, nil
}

// Destroy removes exactly the matched records by position, preserving the
// order and content of the remainder, and enqueues a persistence request.
func (e *Engine) Destroy(ctx context.Context, name string, query model.Query) error {
	if e.snap == nil {
		return ErrNotConfigured
	}

	removed, err := e.destroy(name, query)
	if err != nil {
		return err
	}

	e.logger.Debugw("records destroyed", "collection", name, "count", removed)
	return nil
}

func (e *Engine) destroy(name string, query model.Query) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return 0, err
	}

	records := e.state.Data[name]
	match, err := e.matcher.Evaluate(name, records, query)
	if err != nil {
		return 0, err
	}

	if len(match.Indices) > 0 {
		drop := make(map[int]struct{}, len(match.Indices))
		for _, idx := range match.Indices {
			drop[idx] = struct{}{}
		}
		kept := records[:0]
		for i, rec := range records {
			if _, gone := drop[i]; !gone {
				kept = append(kept, rec)
			}
		}
		e.state.Data[name] = kept
	}

	e.queue.enqueue()
	return len(match.Indices), nil
}

// materializeLocked turns a Match into result rows. When the evaluator
// already produced transformed rows those win; otherwise matched records are
// deep-copied by index, in ascending position order. Caller holds e.mu.
func (e *Engine) materializeLocked(name string, match Match) []model.Record {
	if match.Results != nil {
		return match.Results
	}
	records := e.state.Data[name]
	indices := append([]int(nil), match.Indices...)
	sort.Ints(indices)

	results := make([]model.Record, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(records) {
			continue
		}
		results = append(results, records[idx].Clone())
	}
	return results
}
