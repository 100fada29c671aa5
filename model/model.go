// Package model defines the core data types shared by the collstore engine
// and its persistence layer: records, schemas, counters and the full
// serializable engine state.
package model

// Record is a single stored item within a collection, a field/value mapping.
// Field values are restricted to what the configured codec can encode; the
// engine never interprets them beyond the coercion implied by the schema.
type Record map[string]any

// Query is an opaque query specification. The engine passes it through to the
// external criteria evaluator and aggregate processor without interpreting it.
type Query map[string]any

// Counters tracks the last-issued auto-increment value per attribute.
// Values are monotonically non-decreasing for the lifetime of a collection.
type Counters map[string]int64

// State is the full engine state for one store instance. It is the unit of
// persistence: every write serializes all three maps together so that data,
// schema and counters are always recovered from a single consistent snapshot.
type State struct {
	Data     map[string][]Record `json:"data" bson:"data"`
	Schema   map[string]Schema   `json:"schema" bson:"schema"`
	Counters map[string]Counters `json:"counters" bson:"counters"`
}

// NewState returns an empty state with all maps initialized.
func NewState() *State {
	return &State{
		Data:     make(map[string][]Record),
		Schema:   make(map[string]Schema),
		Counters: make(map[string]Counters),
	}
}

// Normalize replaces nil maps with empty ones. Decoders leave absent
// top-level fields nil; the engine relies on the maps being non-nil.
func (s *State) Normalize() {
	if s.Data == nil {
		s.Data = make(map[string][]Record)
	}
	if s.Schema == nil {
		s.Schema = make(map[string]Schema)
	}
	if s.Counters == nil {
		s.Counters = make(map[string]Counters)
	}
}

// Clone returns a deep copy of the state. Used by the write queue to take a
// consistent snapshot under the engine lock before the blocking disk write.
func (s *State) Clone() *State {
	out := NewState()
	for name, records := range s.Data {
		out.Data[name] = CloneRecords(records)
	}
	for name, schema := range s.Schema {
		out.Schema[name] = schema.Clone()
	}
	for name, counters := range s.Counters {
		c := make(Counters, len(counters))
		for attr, v := range counters {
			c[attr] = v
		}
		out.Counters[name] = c
	}
	return out
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneRecords deep-copies a slice of records, preserving order.
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// CloneValue deep-copies a codec-decoded value. Maps and slices are copied
// recursively; scalars are returned as-is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case Record:
		return val.Clone()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}
