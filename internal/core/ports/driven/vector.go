package driven

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// VectorIndex stores block embeddings and answers similarity queries.
type VectorIndex interface {
	// Upsert inserts or replaces the entry for its chunk ID.
	Upsert(ctx context.Context, entry domain.IndexEntry) error

	// DeleteVideo removes every entry of a video.
	DeleteVideo(ctx context.Context, videoID string) error

	// Search finds the k nearest entries to the query vector, optionally
	// restricted to one video.
	Search(ctx context.Context, query []float32, k int, videoID string) ([]VectorHit, error)
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64
}
