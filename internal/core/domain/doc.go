// Package domain defines the core business entities for mentions.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Transcript / Utterance: the ordered speech units of one video
//   - BoundarySegment: a narrative or Q&A region over utterance indices
//   - QABlock: one viewer question plus the host's complete answer
//   - MentionResult / OpinionRecord: the progressive filter outputs
//   - ExportSnapshot: the consolidated per-video artifact
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
