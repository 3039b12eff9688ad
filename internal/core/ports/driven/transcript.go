package driven

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// TranscriptLoader reads transcription output into a Transcript.
type TranscriptLoader interface {
	// Load reads the transcript at path. An empty videoID is derived from
	// the file name.
	Load(ctx context.Context, path, videoID string) (*domain.Transcript, error)
}
