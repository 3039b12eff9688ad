package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
	"github.com/custodia-labs/mentions/internal/logger"
)

// Ensure ExportAssembler implements the interface.
var _ driving.ExportService = (*ExportAssembler)(nil)

// ExportAssembler materialises a video's ledger contents into a snapshot.
type ExportAssembler struct {
	segments driven.SegmentLedger
	opinions driven.OpinionLedger
	exports  driven.ExportStore
	sink     driven.ExportSink
}

// NewExportAssembler creates an export assembler. sink may be nil.
func NewExportAssembler(
	segments driven.SegmentLedger,
	opinions driven.OpinionLedger,
	exports driven.ExportStore,
	sink driven.ExportSink,
) *ExportAssembler {
	return &ExportAssembler{
		segments: segments,
		opinions: opinions,
		exports:  exports,
		sink:     sink,
	}
}

// Export assembles and stores the snapshot, replacing the previous one.
// It never writes a partial snapshot: any gap in the segmentation fails
// with domain.ErrExportIncomplete.
func (e *ExportAssembler) Export(ctx context.Context, videoID string) (*domain.ExportSnapshot, error) {
	state, err := e.segments.GetVideo(ctx, videoID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("export %s: %w: %w", videoID, domain.ErrExportIncomplete, err)
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: get video: %w", videoID, err)
	}
	boundaries, err := e.segments.GetBoundaries(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("export %s: get boundaries: %w", videoID, err)
	}
	blocks, err := e.segments.GetBlocks(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("export %s: get blocks: %w", videoID, err)
	}
	if err := checkConsistency(state, boundaries, blocks); err != nil {
		return nil, fmt.Errorf("export %s: %w", videoID, err)
	}

	records, err := e.opinions.ListOpinions(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("export %s: list opinions: %w", videoID, err)
	}
	known := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		known[b.BlockID] = struct{}{}
	}
	opinions := make([]domain.OpinionRecord, 0, len(records))
	for _, r := range records {
		if _, ok := known[r.BlockID]; !ok {
			logger.Debug("export: %s skipping stale opinion %s", videoID, r.ChunkID)
			continue
		}
		opinions = append(opinions, r)
	}

	snapshot := &domain.ExportSnapshot{
		ExportID:         uuid.NewString(),
		VideoID:          videoID,
		BoundarySegments: boundaries,
		QABlocks:         blocks,
		Opinions:         opinions,
		CreatedAt:        time.Now(),
	}
	if err := e.exports.SaveExport(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("export %s: save: %w", videoID, err)
	}
	if e.sink != nil {
		where, err := e.sink.Write(ctx, snapshot)
		if err != nil {
			return nil, fmt.Errorf("export %s: publish: %w", videoID, err)
		}
		logger.Info("export: %s written to %s", videoID, where)
	}
	return snapshot, nil
}

// Get returns the current snapshot.
func (e *ExportAssembler) Get(ctx context.Context, videoID string) (*domain.ExportSnapshot, error) {
	return e.exports.GetExport(ctx, videoID)
}

// checkConsistency verifies the boundaries partition the transcript, every
// qa segment holds at least one block and every block lies within exactly
// one qa segment.
func checkConsistency(state *domain.VideoState, boundaries []domain.BoundarySegment, blocks []domain.QABlock) error {
	if len(boundaries) == 0 {
		return fmt.Errorf("%w: video has not been segmented", domain.ErrExportIncomplete)
	}
	if err := domain.ValidatePartition(boundaries, state.FirstIndex, state.LastIndex); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExportIncomplete, err)
	}

	qa := domain.QASegments(boundaries)
	perSegment := make([][]domain.QABlock, len(qa))
	for _, b := range blocks {
		owner := -1
		for i, seg := range qa {
			if seg.Contains(b.StartIndex, b.EndIndex) {
				owner = i
				break
			}
		}
		if owner < 0 {
			return fmt.Errorf("%w: block %s is not inside a qa segment", domain.ErrExportIncomplete, b.BlockID)
		}
		perSegment[owner] = append(perSegment[owner], b)
	}

	for i, seg := range qa {
		if len(perSegment[i]) == 0 {
			return fmt.Errorf("%w: qa segment %s has no blocks", domain.ErrExportIncomplete, seg.SegmentID())
		}
		region := domain.Range{Start: seg.StartIndex, End: seg.EndIndex}
		if err := domain.ValidateBlocks(perSegment[i], region); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExportIncomplete, err)
		}
	}
	return nil
}
