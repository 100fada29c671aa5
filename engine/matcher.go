package engine

import "github.com/collstore/collstore/model"

// Match is the result of evaluating a query against a collection's records.
type Match struct {
	// Indices are the positions of matching records, ascending.
	Indices []int
	// Results optionally carries transformed result rows. When nil, the
	// engine materializes results from Indices itself.
	Results []model.Record
}

// Matcher evaluates a query specification against a collection's records.
// The engine treats the query as opaque; matching is always an in-memory
// linear scan performed by the implementation.
//
// Evaluate is called with the engine lock held and must not retain data.
type Matcher interface {
	Evaluate(collection string, data []model.Record, query model.Query) (Match, error)
}

// Aggregator applies grouping/sorting/transform semantics to matched rows.
// Errors are surfaced to the Select caller unchanged.
type Aggregator interface {
	Aggregate(query model.Query, results []model.Record) ([]model.Record, error)
}

// matchAll is the default Matcher: every record matches.
type matchAll struct{}

func (matchAll) Evaluate(_ string, data []model.Record, _ model.Query) (Match, error) {
	indices := make([]int, len(data))
	for i := range data {
		indices[i] = i
	}
	return Match{Indices: indices}, nil
}

// passthrough is the default Aggregator: results are returned as matched.
type passthrough struct{}

func (passthrough) Aggregate(_ model.Query, results []model.Record) ([]model.Record, error) {
	return results, nil
}
