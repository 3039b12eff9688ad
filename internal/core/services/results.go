package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
)

// Ensure ResultsService implements the interface.
var _ driving.ResultsService = (*ResultsService)(nil)

// ResultsService exposes ledger contents and purging.
type ResultsService struct {
	segments driven.SegmentLedger
	opinions driven.OpinionLedger
	exports  driven.ExportStore
	sink     driven.ExportSink
	vectors  driven.VectorIndex
}

// NewResultsService creates a results service. sink and vectors may be nil.
func NewResultsService(
	segments driven.SegmentLedger,
	opinions driven.OpinionLedger,
	exports driven.ExportStore,
	sink driven.ExportSink,
	vectors driven.VectorIndex,
) *ResultsService {
	return &ResultsService{
		segments: segments,
		opinions: opinions,
		exports:  exports,
		sink:     sink,
		vectors:  vectors,
	}
}

// Videos lists every segmented video.
func (s *ResultsService) Videos(ctx context.Context) ([]domain.VideoState, error) {
	return s.segments.ListVideos(ctx)
}

// Segments returns the boundary segments and blocks of a video.
func (s *ResultsService) Segments(ctx context.Context, videoID string) ([]domain.BoundarySegment, []domain.QABlock, error) {
	if _, err := s.segments.GetVideo(ctx, videoID); err != nil {
		return nil, nil, fmt.Errorf("get video %s: %w", videoID, err)
	}
	boundaries, err := s.segments.GetBoundaries(ctx, videoID)
	if err != nil {
		return nil, nil, fmt.Errorf("get boundaries: %w", err)
	}
	blocks, err := s.segments.GetBlocks(ctx, videoID)
	if err != nil {
		return nil, nil, fmt.Errorf("get blocks: %w", err)
	}
	return boundaries, blocks, nil
}

// Opinion returns the record for an exact chunk ID.
func (s *ResultsService) Opinion(ctx context.Context, chunkID string) (*domain.OpinionRecord, error) {
	if chunkID == "" {
		return nil, fmt.Errorf("%w: chunk id is required", domain.ErrInvalidInput)
	}
	return s.opinions.GetOpinion(ctx, chunkID)
}

// Opinions returns every record of a video.
func (s *ResultsService) Opinions(ctx context.Context, videoID string) ([]domain.OpinionRecord, error) {
	return s.opinions.ListOpinions(ctx, videoID)
}

// Purge deletes everything stored for a video. Each store is attempted;
// failures are joined.
func (s *ResultsService) Purge(ctx context.Context, videoID string) error {
	if videoID == "" {
		return fmt.Errorf("%w: video id is required", domain.ErrInvalidInput)
	}

	var errs []error
	if err := s.segments.PurgeVideo(ctx, videoID); err != nil {
		errs = append(errs, fmt.Errorf("purge segments: %w", err))
	}
	if _, err := s.opinions.InvalidateOpinions(ctx, videoID); err != nil {
		errs = append(errs, fmt.Errorf("purge opinions: %w", err))
	}
	if err := s.exports.DeleteExport(ctx, videoID); err != nil {
		errs = append(errs, fmt.Errorf("purge export: %w", err))
	}
	if s.sink != nil {
		if err := s.sink.Remove(ctx, videoID); err != nil {
			errs = append(errs, fmt.Errorf("remove export file: %w", err))
		}
	}
	if s.vectors != nil {
		if err := s.vectors.DeleteVideo(ctx, videoID); err != nil {
			errs = append(errs, fmt.Errorf("purge vectors: %w", err))
		}
	}
	return errors.Join(errs...)
}
