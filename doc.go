// Package collstore provides an embedded, file-backed collection store for Go.
//
// Collstore keeps named collections of schemaless records in memory and
// persists the entire state (records, schemas, auto-increment counters) to a
// single file. Reads and in-memory mutations are synchronous; disk writes run
// on a background worker that serializes them one at a time.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, _ := collstore.Open(ctx, "./data", "app", collstore.WithCollections(map[string]collstore.Schema{
//	    "users": {
//	        "id":    {AutoIncrement: true, Unique: true},
//	        "email": {Unique: true},
//	    },
//	}))
//	defer db.Close()
//
//	rec, _ := db.Insert(ctx, "users", collstore.Record{"email": "a@x.com"})
//	fmt.Println(rec["id"]) // 1
//
// # Schema Constraints
//
// Attribute definitions drive three constraints:
//
//	// Unique — inserting a duplicate value fails with *UniquenessError,
//	// listing every conflicting attribute, not just the first.
//	// AutoIncrement — omitted values are assigned counter+1 per collection.
//	// Type "json" — string values are parsed into structured data; values
//	// that fail to parse are stored as-is.
//
// Records themselves are schemaless: attributes outside the schema are stored
// untouched.
//
// # Durability Model
//
// Every mutation is applied in memory first and enqueues a whole-state write;
// the worker snapshots the state at write time, so bursts coalesce naturally
// and the last write always carries the latest state. DropCollection is the
// exception: it blocks until its write is durable.
//
// # Remote Storage
//
// The state file can live in object storage instead of the local filesystem:
//
//	client, _ := s3.NewDefaultClient(ctx)
//	db, _ := collstore.Open(ctx, "", "app",
//	    collstore.WithBlobStore(s3.NewStore(client, "my-bucket", "stores/")))
package collstore
