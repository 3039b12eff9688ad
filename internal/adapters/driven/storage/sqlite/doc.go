// Package sqlite provides a unified SQLite-based implementation of the
// ledger ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - SegmentLedger: Boundary segments and Q&A blocks
//   - OpinionLedger: Opinion records keyed by chunk ID
//   - ExportStore: Current export snapshot per video
//   - VectorIndex: Block embeddings for semantic search
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.mentions/data/ledger.db
//
// # Thread Safety
//
// All operations are thread-safe. Writes run in immediate transactions so a
// compare-and-skip check and its insert see the same state.
package sqlite
