package driving

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// ExportService assembles and reads export snapshots.
type ExportService interface {
	// Export assembles the video's snapshot from the ledger and replaces
	// the previous one. Fails with domain.ErrExportIncomplete on any
	// inconsistency.
	Export(ctx context.Context, videoID string) (*domain.ExportSnapshot, error)

	// Get returns the current snapshot.
	Get(ctx context.Context, videoID string) (*domain.ExportSnapshot, error)
}

// ResultsService exposes the ledger contents to CLI and MCP clients.
type ResultsService interface {
	// Videos lists every segmented video.
	Videos(ctx context.Context) ([]domain.VideoState, error)

	// Segments returns the boundary segments and blocks of a video.
	Segments(ctx context.Context, videoID string) ([]domain.BoundarySegment, []domain.QABlock, error)

	// Opinion returns the record for an exact chunk ID.
	Opinion(ctx context.Context, chunkID string) (*domain.OpinionRecord, error)

	// Opinions returns every record of a video.
	Opinions(ctx context.Context, videoID string) ([]domain.OpinionRecord, error)

	// Purge deletes everything stored for a video.
	Purge(ctx context.Context, videoID string) error
}
