package driving

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// Processor runs the segmentation and opinion pipeline for one video.
type Processor interface {
	// Process runs every stage for the transcript. A partially successful
	// run returns a report listing failed units and a nil error; pipeline
	// level failures (ledger unavailable, boundary segmentation failed,
	// cancellation) return an error alongside the report built so far.
	Process(ctx context.Context, transcript *domain.Transcript, opts domain.ProcessOptions) (*domain.RunReport, error)

	// Segment runs the boundary and block passes only.
	Segment(ctx context.Context, transcript *domain.Transcript, force bool) (*domain.RunReport, error)

	// Status returns the in-progress run for a video, if any.
	Status(videoID string) (*domain.RunStatus, bool)

	// Active returns every in-progress run.
	Active() []domain.RunStatus
}
