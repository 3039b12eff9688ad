package driven

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// MentionDetector finds person names in text. It is the cheap filter that
// gates the costly opinion classification.
type MentionDetector interface {
	// DetectPersons returns one result per input text, in input order.
	// A result count that differs from len(texts) is treated by callers as a
	// failed batch.
	DetectPersons(ctx context.Context, texts []string) ([]domain.MentionResult, error)

	// Name identifies the detector in logs and reports.
	Name() string
}
