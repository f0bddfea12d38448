// Package sqlite provides the persistent vector index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Each entry stores a chunk's text, its source URL and its
// embedding; nearest-neighbour queries scan the stored embeddings and rank
// them by cosine similarity.
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory.
//
// # Data Location
//
// The database lives at <index.path>/index.db. Ingestion opens it for
// writing; answering opens it with Open(dir, ReadOnly).
//
// # Thread Safety
//
// All operations are safe for concurrent use. Writers are serialised by
// SQLite in WAL mode.
package sqlite
