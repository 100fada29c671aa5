package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collstore/collstore/blobstore"
	"github.com/collstore/collstore/model"
	"github.com/collstore/collstore/persistence"
)

func newTestSnapshotter(t *testing.T, dir string) *persistence.Snapshotter {
	t.Helper()
	return persistence.NewSnapshotter(blobstore.NewLocal(dir), "state.db")
}

func newTestEngine(t *testing.T, dir string, opts ...Option) *Engine {
	t.Helper()
	e := New(newTestSnapshotter(t, dir), opts...)
	require.NoError(t, e.Initialize(context.Background()))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func usersSchema() model.Schema {
	return model.Schema{
		"id":    {AutoIncrement: true, Unique: true},
		"email": {Unique: true},
	}
}

func TestEngineNotConfigured(t *testing.T) {
	e := New(nil)

	require.ErrorIs(t, e.Initialize(context.Background()), ErrNotConfigured)

	_, err := e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = e.Select(context.Background(), "users", nil)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestEngineNotInitialized(t *testing.T) {
	e := New(newTestSnapshotter(t, t.TempDir()))

	_, err := e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.ErrorIs(t, err, ErrNotInitialized)

	err = e.DropCollection(context.Background(), "users")
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestEngineInitializeIdempotent(t *testing.T) {
	e := New(newTestSnapshotter(t, t.TempDir()))
	require.NoError(t, e.Initialize(context.Background()))
	require.NoError(t, e.Initialize(context.Background()))
	require.NoError(t, e.Close())
}

func TestEngineInitializeCorruptState(t *testing.T) {
	dir := t.TempDir()
	store := blobstore.NewLocal(dir)
	require.NoError(t, store.Put(context.Background(), "state.db", []byte("{not json")))

	e := New(newTestSnapshotter(t, dir))
	err := e.Initialize(context.Background())
	require.Error(t, err)

	var perr *persistence.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "state.db", perr.Name)
}

func TestEngineInsertAutoIncrementAndUnique(t *testing.T) {
	e := newTestEngine(t, t.TempDir(), WithCollections(map[string]model.Schema{
		"users": usersSchema(),
	}))

	first, err := e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, first["id"])
	assert.Equal(t, "a@x.com", first["email"])

	_, err = e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	var uerr *UniquenessError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "users", uerr.Collection)
	require.Len(t, uerr.Violations, 1)
	assert.Equal(t, "email", uerr.Violations[0].Attribute)
	assert.Equal(t, "a@x.com", uerr.Violations[0].Value)
	assert.Equal(t, 0, uerr.Violations[0].Index)

	// The rejected insert must not have mutated anything.
	results, err := e.Select(context.Background(), "users", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	second, err := e.Insert(context.Background(), "users", model.Record{"email": "b@x.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, second["id"])
}

func TestEngineInsertUnknownCollection(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	_, err := e.Insert(context.Background(), "ghosts", model.Record{"x": 1})
	require.ErrorIs(t, err, ErrCollectionNotRegistered)
}

func TestEngineReopenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	defs := map[string]model.Schema{"users": usersSchema()}

	e := newTestEngine(t, dir, WithCollections(defs))
	_, err := e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.NoError(t, err)
	_, err = e.Insert(context.Background(), "users", model.Record{"email": "b@x.com"})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopened := New(newTestSnapshotter(t, dir), WithCollections(defs))
	require.NoError(t, reopened.Initialize(context.Background()))
	defer reopened.Close()

	results, err := reopened.Select(context.Background(), "users", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a@x.com", results[0]["email"])
	assert.Equal(t, "b@x.com", results[1]["email"])

	// The auto-increment counter survives the restart.
	third, err := reopened.Insert(context.Background(), "users", model.Record{"email": "c@x.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, third["id"])
}

func TestEngineCreateAndDescribe(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	schema, err := e.CreateCollection(context.Background(), "articles", model.Schema{
		"id":    {AutoIncrement: true},
		"title": {},
	})
	require.NoError(t, err)
	require.Len(t, schema, 2)

	described, err := e.Describe("articles")
	require.NoError(t, err)
	assert.True(t, described["id"].AutoIncrement)

	missing, err := e.Describe("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEngineCreateCollectionMergesSchema(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	_, err := e.CreateCollection(context.Background(), "articles", model.Schema{"title": {}})
	require.NoError(t, err)
	schema, err := e.CreateCollection(context.Background(), "articles", model.Schema{
		"id": {AutoIncrement: true},
	})
	require.NoError(t, err)

	require.Len(t, schema, 2)
	assert.True(t, schema["id"].AutoIncrement)
}

func TestEngineDropCollection(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir, WithCollections(map[string]model.Schema{
		"users":         usersSchema(),
		"users_archive": {"id": {}},
	}))

	_, err := e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, e.DropCollection(context.Background(), "users", "users_archive"))

	_, err = e.Insert(context.Background(), "users", model.Record{"email": "b@x.com"})
	require.ErrorIs(t, err, ErrCollectionNotRegistered)

	schema, err := e.Describe("users_archive")
	require.NoError(t, err)
	assert.Nil(t, schema)

	// Drop blocks on durability, so the persisted state reflects it already.
	st, err := newTestSnapshotter(t, dir).Read(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, st.Data, "users")
	assert.NotContains(t, st.Schema, "users_archive")

	// Dropping a collection resets its auto-increment counter.
	_, err = e.CreateCollection(context.Background(), "users", usersSchema())
	require.NoError(t, err)
	rec, err := e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec["id"])
}

func TestEngineCloseTwice(t *testing.T) {
	e := New(newTestSnapshotter(t, t.TempDir()))
	require.NoError(t, e.Initialize(context.Background()))
	require.NoError(t, e.Close())
	require.ErrorIs(t, e.Close(), ErrClosed)

	_, err := e.Insert(context.Background(), "users", model.Record{"email": "a@x.com"})
	require.ErrorIs(t, err, ErrClosed)
}
