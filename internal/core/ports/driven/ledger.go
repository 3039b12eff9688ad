package driven

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// SegmentLedger persists boundary segments and Q&A blocks.
//
// Writes are compare-and-skip: without force, a write to a key that already
// holds data leaves it unchanged and returns the stored value.
type SegmentLedger interface {
	// GetVideo returns the transcript state recorded for a video.
	// Returns domain.ErrNotFound if the video has never been segmented.
	GetVideo(ctx context.Context, videoID string) (*domain.VideoState, error)

	// ListVideos returns every recorded video, most recent first.
	ListVideos(ctx context.Context) ([]domain.VideoState, error)

	// PutBoundaries records the boundary set for a video. When the stored
	// fingerprint matches and force is false the stored set is returned.
	// Otherwise the previous boundaries and blocks are superseded atomically.
	PutBoundaries(ctx context.Context, state domain.VideoState, segments []domain.BoundarySegment, force bool) ([]domain.BoundarySegment, error)

	// GetBoundaries returns the boundary set ordered by start index.
	GetBoundaries(ctx context.Context, videoID string) ([]domain.BoundarySegment, error)

	// PutBlocks records the blocks of one qa region. Without force an already
	// segmented region keeps its stored blocks, which are returned.
	PutBlocks(ctx context.Context, videoID string, region domain.Range, blocks []domain.QABlock, force bool) ([]domain.QABlock, error)

	// GetRegionBlocks returns the blocks stored for one region and whether
	// the region has been segmented at all.
	GetRegionBlocks(ctx context.Context, videoID string, region domain.Range) ([]domain.QABlock, bool, error)

	// GetBlocks returns every block of a video ordered by start index.
	GetBlocks(ctx context.Context, videoID string) ([]domain.QABlock, error)

	// PurgeVideo deletes all segmentation rows for a video.
	PurgeVideo(ctx context.Context, videoID string) error
}

// OpinionLedger persists opinion records keyed by chunk ID.
type OpinionLedger interface {
	// GetOpinion looks up a record by exact chunk ID.
	// Returns domain.ErrNotFound on a miss.
	GetOpinion(ctx context.Context, chunkID string) (*domain.OpinionRecord, error)

	// PutOpinion writes a record. Without force an occupied key is left
	// unchanged; the stored record is returned with written=false.
	PutOpinion(ctx context.Context, rec domain.OpinionRecord, force bool) (stored *domain.OpinionRecord, written bool, err error)

	// ListOpinions returns a video's records ordered by start time.
	ListOpinions(ctx context.Context, videoID string) ([]domain.OpinionRecord, error)

	// InvalidateOpinions deletes every record of a video and returns how many
	// were removed.
	InvalidateOpinions(ctx context.Context, videoID string) (int, error)
}

// ExportStore persists the current export snapshot per video.
type ExportStore interface {
	// SaveExport replaces the video's snapshot.
	SaveExport(ctx context.Context, snapshot *domain.ExportSnapshot) error

	// GetExport returns the current snapshot.
	// Returns domain.ErrNotFound if the video was never exported.
	GetExport(ctx context.Context, videoID string) (*domain.ExportSnapshot, error)

	// DeleteExport removes the snapshot, if any.
	DeleteExport(ctx context.Context, videoID string) error
}

// ExportSink publishes export snapshots outside the ledger.
type ExportSink interface {
	// Write publishes the snapshot and returns where it went.
	Write(ctx context.Context, snapshot *domain.ExportSnapshot) (string, error)

	// Remove deletes the published snapshot for a video, if any.
	Remove(ctx context.Context, videoID string) error
}
