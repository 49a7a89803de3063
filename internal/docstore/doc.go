// Package docstore is the persistence layer: named collections of
// schemaless JSON documents, keyed by string id, with optional
// subcollections addressed by path ("projects/<id>/members").
//
// Documents are plain maps. A field missing from a document is
// undefined, not zero; callers decode into structs whose nullable
// fields are pointers so the distinction survives.
//
// Two backends exist: SQLite (modernc.org/sqlite, the default) and
// PostgreSQL (pgx). Both keep every document in a single table and
// filter on JSON fields. A Store wraps a backend with write rules,
// change notifications and id generation. Most processes open one
// Store through Shared.
package docstore
