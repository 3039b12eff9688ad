// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to run:
//
//   - TranscriptLoader: Reads utterances from transcription output
//   - Classifier: Structured judgments for boundaries, blocks and opinions
//   - MentionDetector: Person-mention filter
//   - SegmentLedger: Boundary and block persistence
//   - OpinionLedger: Opinion record persistence (SQLite or Redis)
//   - ExportStore: Export snapshot persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ExportSink: Writes export snapshots as JSON files.
//   - EmbeddingService: Generates vector embeddings. Without it, semantic search is disabled.
//   - VectorIndex: Vector storage/search. Only used when EmbeddingService is configured.
//   - PromptStore: Overrides the built-in system prompts.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
