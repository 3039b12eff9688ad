package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex with brute-force cosine
// similarity over embeddings stored as little-endian float32 blobs.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert inserts or replaces the entry for its chunk ID.
func (v *vectorIndex) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if entry.ChunkID == "" || len(entry.Embedding) == 0 {
		return fmt.Errorf("%w: index entry needs a chunk id and an embedding", domain.ErrInvalidInput)
	}
	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO vectors (chunk_id, video_id, text, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			video_id = excluded.video_id,
			text = excluded.text,
			embedding = excluded.embedding
	`, entry.ChunkID, entry.VideoID, entry.Text, float32SliceToBytes(entry.Embedding))
	if err != nil {
		return fmt.Errorf("saving vector: %w", err)
	}
	return nil
}

// DeleteVideo removes every entry of a video.
func (v *vectorIndex) DeleteVideo(ctx context.Context, videoID string) error {
	if _, err := v.store.db.ExecContext(ctx, `DELETE FROM vectors WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Search returns the k entries most similar to query.
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int, videoID string) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	q := `SELECT chunk_id, embedding FROM vectors`
	var args []any
	if videoID != "" {
		q += ` WHERE video_id = ?`
		args = append(args, videoID)
	}
	rows, err := v.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			Similarity: domain.CosineSimilarity(query, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity == hits[j].Similarity {
			return hits[i].ChunkID < hits[j].ChunkID
		}
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
