package engine

import (
	"reflect"
	"sort"

	gojson "github.com/goccy/go-json"

	"github.com/collstore/collstore/model"
)

// checkUniquenessLocked scans the collection for records colliding with the
// candidate on any unique attribute. Every violation is collected; the
// caller receives the full list, not just the first. Caller holds e.mu.
func (e *Engine) checkUniquenessLocked(name string, candidate model.Record) []Violation {
	kinds := e.kinds[name]
	records := e.state.Data[name]

	// Stable attribute order keeps violation lists deterministic.
	attrs := make([]string, 0, len(kinds))
	for attr, kind := range kinds {
		if kind.Has(model.KindUnique) {
			attrs = append(attrs, attr)
		}
	}
	sort.Strings(attrs)

	var violations []Violation
	for _, attr := range attrs {
		value, ok := candidate[attr]
		if !ok || value == nil {
			continue
		}
		for i, rec := range records {
			existing, ok := rec[attr]
			if !ok || existing == nil {
				continue
			}
			if equalValues(existing, value) {
				violations = append(violations, Violation{Attribute: attr, Value: value, Index: i})
			}
		}
	}
	return violations
}

// applyAutoIncrementLocked assigns counter+1 to every auto-increment
// attribute the candidate omits, and advances the counter. Counters never
// decrease; they reset only when the collection is dropped. Caller holds e.mu.
func (e *Engine) applyAutoIncrementLocked(name string, candidate model.Record) {
	counters := e.state.Counters[name]
	for attr, kind := range e.kinds[name] {
		if !kind.Has(model.KindAutoIncrement) {
			continue
		}
		if _, supplied := candidate[attr]; supplied {
			continue
		}
		next := counters[attr] + 1
		counters[attr] = next
		candidate[attr] = next
	}
}

// coerceTypesLocked parses string values of json-typed attributes into
// structured data. A value that fails to parse is left untouched; the
// leniency is deliberate, coercion is not a validation gate. Caller holds e.mu.
func (e *Engine) coerceTypesLocked(name string, candidate model.Record) {
	for attr, kind := range e.kinds[name] {
		if !kind.Has(model.KindJSON) {
			continue
		}
		raw, ok := candidate[attr].(string)
		if !ok {
			continue
		}
		var parsed any
		if err := gojson.Unmarshal([]byte(raw), &parsed); err != nil {
			continue
		}
		candidate[attr] = parsed
	}
}

// uniqueAttrsInLocked returns the unique-constrained attributes present in
// values, sorted. Caller holds e.mu.
func (e *Engine) uniqueAttrsInLocked(name string, values model.Record) []string {
	var attrs []string
	for attr, kind := range e.kinds[name] {
		if !kind.Has(model.KindUnique) {
			continue
		}
		if _, ok := values[attr]; ok {
			attrs = append(attrs, attr)
		}
	}
	sort.Strings(attrs)
	return attrs
}

// equalValues compares codec-decoded field values structurally. Numbers are
// compared by value regardless of Go type: a reloaded state decodes integers
// as float64 while fresh auto-increment values are int64.
func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
