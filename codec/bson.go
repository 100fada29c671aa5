package codec

import "go.mongodb.org/mongo-driver/bson"

// BSON is a binary codec backed by the official MongoDB driver.
//
// Limitations compared to the JSON codecs:
//   - the top-level value must be a document (the engine state is one);
//   - attribute-definition fields outside type/unique/autoIncrement are
//     carried via the inline map and so lose any JSON-specific formatting.
type BSON struct{}

// Marshal encodes the value to BSON.
func (BSON) Marshal(v any) ([]byte, error) { return bson.Marshal(v) }

// Unmarshal decodes the BSON data into v.
func (BSON) Unmarshal(data []byte, v any) error { return bson.Unmarshal(data, v) }

// Name returns the unique name of the codec ("bson").
func (BSON) Name() string { return "bson" }
