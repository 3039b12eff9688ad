package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure OpinionLedger implements the interface.
var _ driven.OpinionLedger = (*OpinionLedger)(nil)

// OpinionLedger is an in-memory implementation of driven.OpinionLedger.
type OpinionLedger struct {
	mu      sync.RWMutex
	records map[string]domain.OpinionRecord
	writes  int
}

// NewOpinionLedger creates a new in-memory opinion ledger.
func NewOpinionLedger() *OpinionLedger {
	return &OpinionLedger{
		records: make(map[string]domain.OpinionRecord),
	}
}

// GetOpinion looks up a record by chunk ID.
func (l *OpinionLedger) GetOpinion(_ context.Context, chunkID string) (*domain.OpinionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// PutOpinion writes a record unless the key is occupied and force is false.
func (l *OpinionLedger) PutOpinion(_ context.Context, rec domain.OpinionRecord, force bool) (*domain.OpinionRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if stored, ok := l.records[rec.ChunkID]; ok && !force {
		return &stored, false, nil
	}
	l.records[rec.ChunkID] = rec
	l.writes++
	return &rec, true, nil
}

// ListOpinions returns a video's records ordered by start time.
func (l *OpinionLedger) ListOpinions(_ context.Context, videoID string) ([]domain.OpinionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.OpinionRecord
	for _, rec := range l.records {
		if rec.VideoID == videoID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].BlockID < out[j].BlockID
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

// InvalidateOpinions deletes every record of a video.
func (l *OpinionLedger) InvalidateOpinions(_ context.Context, videoID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, rec := range l.records {
		if rec.VideoID == videoID {
			delete(l.records, id)
			n++
		}
	}
	return n, nil
}

// Writes returns how many records were written, including overwrites.
func (l *OpinionLedger) Writes() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.writes
}
