package model

import "encoding/json"

// Kind is the compiled, closed representation of an attribute's effective
// constraint kinds. Kinds are combinable; the zero value is a plain attribute.
type Kind uint8

const (
	// KindUnique rejects inserts whose value collides with an existing record.
	KindUnique Kind = 1 << iota
	// KindAutoIncrement assigns counter+1 when the attribute is omitted.
	KindAutoIncrement
	// KindJSON attempts to parse supplied string values as structured data.
	KindJSON
)

// Has reports whether k includes all kinds in f.
func (k Kind) Has(f Kind) bool { return k&f == f }

// TypeJSON is the declared attribute type that triggers KindJSON coercion.
const TypeJSON = "json"

// AttributeDefinition is the persisted form of one schema attribute.
// The engine consumes type, unique and autoIncrement; any other field is
// preserved across a persistence round trip but never interpreted.
type AttributeDefinition struct {
	Type          string         `bson:"type,omitempty"`
	Unique        bool           `bson:"unique,omitempty"`
	AutoIncrement bool           `bson:"autoIncrement,omitempty"`
	Extra         map[string]any `bson:",inline"`
}

// Kind compiles the stringly-typed definition flags into their closed
// representation. Compilation happens once, at schema registration.
func (d AttributeDefinition) Kind() Kind {
	var k Kind
	if d.Unique {
		k |= KindUnique
	}
	if d.AutoIncrement {
		k |= KindAutoIncrement
	}
	if d.Type == TypeJSON {
		k |= KindJSON
	}
	return k
}

// Clone returns a deep copy of the definition.
func (d AttributeDefinition) Clone() AttributeDefinition {
	out := d
	if d.Extra != nil {
		out.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = CloneValue(v)
		}
	}
	return out
}

// MarshalJSON flattens the known flags and the preserved extra fields into a
// single object, matching the persisted file layout.
func (d AttributeDefinition) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		m[k] = v
	}
	if d.Type != "" {
		m["type"] = d.Type
	}
	if d.Unique {
		m["unique"] = true
	}
	if d.AutoIncrement {
		m["autoIncrement"] = true
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits an attribute object into the interpreted flags and the
// preserved remainder. A known key with an unexpected type is kept in Extra
// rather than rejected.
func (d *AttributeDefinition) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = AttributeDefinition{}
	for k, v := range m {
		switch k {
		case "type":
			if s, ok := v.(string); ok {
				d.Type = s
				continue
			}
		case "unique":
			if b, ok := v.(bool); ok {
				d.Unique = b
				continue
			}
		case "autoIncrement":
			if b, ok := v.(bool); ok {
				d.AutoIncrement = b
				continue
			}
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = v
	}
	return nil
}

// Schema maps attribute names to their definitions for one collection.
// Immutable once registered; changes go through create/drop collection.
type Schema map[string]AttributeDefinition

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for name, def := range s {
		out[name] = def.Clone()
	}
	return out
}

// Compile resolves every attribute definition to its Kind. The result is the
// engine's runtime view of the schema; the raw definitions are kept only for
// persistence and Describe.
func (s Schema) Compile() map[string]Kind {
	kinds := make(map[string]Kind, len(s))
	for name, def := range s {
		kinds[name] = def.Kind()
	}
	return kinds
}
