package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure ExportStore implements the interface.
var _ driven.ExportStore = (*ExportStore)(nil)

// ExportStore is an in-memory implementation of driven.ExportStore.
type ExportStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.ExportSnapshot
}

// NewExportStore creates a new in-memory export store.
func NewExportStore() *ExportStore {
	return &ExportStore{
		snapshots: make(map[string]domain.ExportSnapshot),
	}
}

// SaveExport replaces the video's snapshot.
func (s *ExportStore) SaveExport(_ context.Context, snapshot *domain.ExportSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.VideoID] = *snapshot
	return nil
}

// GetExport returns the current snapshot.
func (s *ExportStore) GetExport(_ context.Context, videoID string) (*domain.ExportSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

// DeleteExport removes the snapshot, if any.
func (s *ExportStore) DeleteExport(_ context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, videoID)
	return nil
}
