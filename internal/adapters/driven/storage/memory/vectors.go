package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force in-memory implementation of driven.VectorIndex.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]domain.IndexEntry
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		entries: make(map[string]domain.IndexEntry),
	}
}

// Upsert inserts or replaces the entry for its chunk ID.
func (v *VectorIndex) Upsert(_ context.Context, entry domain.IndexEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[entry.ChunkID] = entry
	return nil
}

// DeleteVideo removes every entry of a video.
func (v *VectorIndex) DeleteVideo(_ context.Context, videoID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, e := range v.entries {
		if e.VideoID == videoID {
			delete(v.entries, id)
		}
	}
	return nil
}

// Search returns the k entries most similar to query.
func (v *VectorIndex) Search(_ context.Context, query []float32, k int, videoID string) ([]driven.VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var hits []driven.VectorHit
	for _, e := range v.entries {
		if videoID != "" && e.VideoID != videoID {
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: e.ChunkID, Similarity: domain.CosineSimilarity(query, e.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed entries.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries)
}
