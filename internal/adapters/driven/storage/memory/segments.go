package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Ensure SegmentLedger implements the interface.
var _ driven.SegmentLedger = (*SegmentLedger)(nil)

// SegmentLedger is an in-memory implementation of driven.SegmentLedger.
// State is scoped to the instance; it is meant for tests.
type SegmentLedger struct {
	mu         sync.RWMutex
	videos     map[string]domain.VideoState
	boundaries map[string][]domain.BoundarySegment
	regions    map[string]map[domain.Range][]domain.QABlock
}

// NewSegmentLedger creates a new in-memory segment ledger.
func NewSegmentLedger() *SegmentLedger {
	return &SegmentLedger{
		videos:     make(map[string]domain.VideoState),
		boundaries: make(map[string][]domain.BoundarySegment),
		regions:    make(map[string]map[domain.Range][]domain.QABlock),
	}
}

// GetVideo returns the recorded transcript state.
func (l *SegmentLedger) GetVideo(_ context.Context, videoID string) (*domain.VideoState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	state, ok := l.videos[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

// ListVideos returns every recorded video, most recent first.
func (l *SegmentLedger) ListVideos(_ context.Context) ([]domain.VideoState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.VideoState, 0, len(l.videos))
	for _, v := range l.videos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].VideoID < out[j].VideoID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// PutBoundaries records the boundary set, superseding any previous one.
func (l *SegmentLedger) PutBoundaries(
	_ context.Context,
	state domain.VideoState,
	segments []domain.BoundarySegment,
	force bool,
) ([]domain.BoundarySegment, error) {
	if err := domain.ValidatePartition(segments, state.FirstIndex, state.LastIndex); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.videos[state.VideoID]
	if ok && !force && stored.Fingerprint == state.Fingerprint && len(l.boundaries[state.VideoID]) > 0 {
		return cloneSegments(l.boundaries[state.VideoID]), nil
	}

	state.UpdatedAt = time.Now()
	l.videos[state.VideoID] = state
	l.boundaries[state.VideoID] = cloneSegments(segments)
	delete(l.regions, state.VideoID)
	return cloneSegments(segments), nil
}

// GetBoundaries returns the boundary set ordered by start index.
func (l *SegmentLedger) GetBoundaries(_ context.Context, videoID string) ([]domain.BoundarySegment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSegments(l.boundaries[videoID]), nil
}

// PutBlocks records the blocks of one qa region.
func (l *SegmentLedger) PutBlocks(
	_ context.Context,
	videoID string,
	region domain.Range,
	blocks []domain.QABlock,
	force bool,
) ([]domain.QABlock, error) {
	if err := domain.ValidateBlocks(blocks, region); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isQARegion(videoID, region) {
		return nil, fmt.Errorf("%w: %s is not a qa segment of %s", domain.ErrInvariantViolation, region, videoID)
	}
	if l.regions[videoID] == nil {
		l.regions[videoID] = make(map[domain.Range][]domain.QABlock)
	}
	if stored, ok := l.regions[videoID][region]; ok && !force {
		return cloneBlocks(stored), nil
	}
	l.regions[videoID][region] = cloneBlocks(blocks)
	return cloneBlocks(blocks), nil
}

// GetRegionBlocks returns the blocks of one region and whether it was segmented.
func (l *SegmentLedger) GetRegionBlocks(_ context.Context, videoID string, region domain.Range) ([]domain.QABlock, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	blocks, ok := l.regions[videoID][region]
	return cloneBlocks(blocks), ok, nil
}

// GetBlocks returns every block of a video ordered by start index.
func (l *SegmentLedger) GetBlocks(_ context.Context, videoID string) ([]domain.QABlock, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.QABlock
	for _, blocks := range l.regions[videoID] {
		out = append(out, blocks...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartIndex < out[j].StartIndex })
	return cloneBlocks(out), nil
}

// PurgeVideo deletes all segmentation state for a video.
func (l *SegmentLedger) PurgeVideo(_ context.Context, videoID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.videos, videoID)
	delete(l.boundaries, videoID)
	delete(l.regions, videoID)
	return nil
}

func (l *SegmentLedger) isQARegion(videoID string, region domain.Range) bool {
	for _, s := range l.boundaries[videoID] {
		if s.Type == domain.SegmentQA && s.StartIndex == region.Start && s.EndIndex == region.End {
			return true
		}
	}
	return false
}

func cloneSegments(in []domain.BoundarySegment) []domain.BoundarySegment {
	if in == nil {
		return nil
	}
	out := make([]domain.BoundarySegment, len(in))
	copy(out, in)
	return out
}

func cloneBlocks(in []domain.QABlock) []domain.QABlock {
	if in == nil {
		return nil
	}
	out := make([]domain.QABlock, len(in))
	for i, b := range in {
		b.Questions = append([]string{}, b.Questions...)
		out[i] = b
	}
	return out
}
