package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collstore/collstore/model"
)

// fieldMatcher matches records whose fields equal every query entry.
type fieldMatcher struct{}

func (fieldMatcher) Evaluate(_ string, data []model.Record, query model.Query) (Match, error) {
	var m Match
	for i, rec := range data {
		matched := true
		for field, want := range query {
			if !equalValues(rec[field], want) {
				matched = false
				break
			}
		}
		if matched {
			m.Indices = append(m.Indices, i)
		}
	}
	return m, nil
}

type failingMatcher struct{ err error }

func (f failingMatcher) Evaluate(string, []model.Record, model.Query) (Match, error) {
	return Match{}, f.err
}

type failingAggregator struct{ err error }

func (f failingAggregator) Aggregate(model.Query, []model.Record) ([]model.Record, error) {
	return nil, f.err
}

func seedUsers(t *testing.T, e *Engine, emails ...string) {
	t.Helper()
	for _, email := range emails {
		_, err := e.Insert(context.Background(), "users", model.Record{"email": email})
		require.NoError(t, err)
	}
}

func TestInsertNilRecord(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), WithCollections(map[string]model.Schema{
		"users": usersSchema(),
	}))

	// A nil values map inserts an empty record; auto-increment still applies.
	rec, err := e.Insert(context.Background(), "users", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec["id"])

	// The engine stays healthy afterwards.
	rec, err = e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec["id"])

	results, err := e.Select(context.Background(), "users", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NoError(t, e.Close())
}

func TestInsertNilRecordNoAutoIncrement(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), WithCollections(map[string]model.Schema{
		"notes": {"body": {}},
	}))

	rec, err := e.Insert(context.Background(), "notes", nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec)

	// The stored record is a usable map, so a later merge lands on it.
	updated, err := e.Update(context.Background(), "notes", nil, model.Record{"body": "x"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "x", updated[0]["body"])
}

func TestUpdateNilStoredRecord(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), WithCollections(map[string]model.Schema{
		"notes": {"body": {}},
	}))

	// A record persisted as JSON null decodes to a nil map.
	e.mu.Lock()
	e.state.Data["notes"] = append(e.state.Data["notes"], nil)
	e.mu.Unlock()

	updated, err := e.Update(context.Background(), "notes", nil, model.Record{"body": "x"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "x", updated[0]["body"])
}

func TestSelectWithMatcher(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithMatcher(fieldMatcher{}),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com", "b@x.com", "c@x.com")

	results, err := e.Select(context.Background(), "users", model.Query{"email": "b@x.com"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b@x.com", results[0]["email"])
	assert.EqualValues(t, 2, results[0]["id"])
}

func TestSelectReturnsCopies(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), WithCollections(map[string]model.Schema{
		"users": usersSchema(),
	}))
	seedUsers(t, e, "a@x.com")

	results, err := e.Select(context.Background(), "users", nil)
	require.NoError(t, err)
	results[0]["email"] = "mutated"

	again, err := e.Select(context.Background(), "users", nil)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", again[0]["email"])
}

func TestSelectMatcherError(t *testing.T) {
	wantErr := errors.New("bad query operator")
	e := newTestEngine(t, t.TempDir(), WithMatcher(failingMatcher{err: wantErr}))

	_, err := e.Select(context.Background(), "users", model.Query{"$bogus": 1})
	require.ErrorIs(t, err, wantErr)
}

func TestSelectAggregatorError(t *testing.T) {
	wantErr := errors.New("unknown aggregate stage")
	e := newTestEngine(t, t.TempDir(),
		WithAggregator(failingAggregator{err: wantErr}),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com")

	_, err := e.Select(context.Background(), "users", model.Query{"$group": "email"})
	require.ErrorIs(t, err, wantErr)
}

func TestUpdateMergesFields(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithMatcher(fieldMatcher{}),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com", "b@x.com")

	updated, err := e.Update(context.Background(), "users",
		model.Query{"email": "a@x.com"}, model.Record{"name": "Alice"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "Alice", updated[0]["name"])
	assert.Equal(t, "a@x.com", updated[0]["email"])

	results, err := e.Select(context.Background(), "users", model.Query{"email": "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", results[0]["name"])

	// The untouched record is untouched.
	results, err = e.Select(context.Background(), "users", model.Query{"email": "b@x.com"})
	require.NoError(t, err)
	_, hasName := results[0]["name"]
	assert.False(t, hasName)
}

func TestUpdateUniqueUnchangedValueAllowed(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithMatcher(fieldMatcher{}),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com")

	// Writing the same unique value back to the single matched record is a
	// no-op uniqueness-wise and passes.
	updated, err := e.Update(context.Background(), "users",
		model.Query{"email": "a@x.com"},
		model.Record{"email": "a@x.com", "name": "Alice"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "Alice", updated[0]["name"])
}

func TestUpdateUniqueChangedValueRejected(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithMatcher(fieldMatcher{}),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com")

	_, err := e.Update(context.Background(), "users",
		model.Query{"email": "a@x.com"}, model.Record{"email": "new@x.com"})
	var uerr *UniquenessError
	require.ErrorAs(t, err, &uerr)
	require.Len(t, uerr.Violations, 1)
	assert.Equal(t, "email", uerr.Violations[0].Attribute)
	assert.Equal(t, "new@x.com", uerr.Violations[0].Value)

	// The rejected update left the record alone.
	results, err := e.Select(context.Background(), "users", model.Query{"email": "a@x.com"})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestUpdateUniqueMultiMatchRejected(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com", "b@x.com")

	// Default matcher matches everything; a unique attribute cannot be
	// written across two records.
	_, err := e.Update(context.Background(), "users", nil,
		model.Record{"email": "same@x.com"})
	var uerr *UniquenessError
	require.ErrorAs(t, err, &uerr)
	require.Len(t, uerr.Violations, 1)
	assert.Equal(t, -1, uerr.Violations[0].Index)
}

func TestUpdateNonUniqueMultiMatch(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com", "b@x.com")

	updated, err := e.Update(context.Background(), "users", nil,
		model.Record{"active": true})
	require.NoError(t, err)
	require.Len(t, updated, 2)
	for _, rec := range updated {
		assert.Equal(t, true, rec["active"])
	}
}

func TestDestroyPreservesOrder(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithMatcher(fieldMatcher{}),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com", "b@x.com", "c@x.com", "d@x.com")

	require.NoError(t, e.Destroy(context.Background(), "users", model.Query{"email": "b@x.com"}))
	require.NoError(t, e.Destroy(context.Background(), "users", model.Query{"email": "d@x.com"}))

	results, err := e.Select(context.Background(), "users", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a@x.com", results[0]["email"])
	assert.Equal(t, "c@x.com", results[1]["email"])
}

func TestDestroyNoMatch(t *testing.T) {
	e := newTestEngine(t, t.TempDir(),
		WithMatcher(fieldMatcher{}),
		WithCollections(map[string]model.Schema{"users": usersSchema()}),
	)
	seedUsers(t, e, "a@x.com")

	require.NoError(t, e.Destroy(context.Background(), "users", model.Query{"email": "nope"}))

	results, err := e.Select(context.Background(), "users", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
