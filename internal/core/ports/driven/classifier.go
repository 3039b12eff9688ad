package driven

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// Classifier is the natural-language classification engine used for
// boundary, block and opinion judgments. Calls cost money and latency and
// may fail; callers wrap them in a retry policy.
type Classifier interface {
	// Classify submits one prompt and returns the raw JSON judgment.
	// Errors are classified with domain.ErrTransient, domain.ErrRateLimited
	// or domain.ErrMalformedResponse when retryable.
	Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error)
}

// ClassifyRequest is a single classification call.
type ClassifyRequest struct {
	// System is the instruction prompt, including the output schema.
	System string

	// Prompt is the per-call payload.
	Prompt string

	// Strength selects the standard or strong model.
	Strength domain.ModelStrength
}

// ClassifyResponse is the raw engine output.
type ClassifyResponse struct {
	// Content is the JSON object returned by the engine.
	Content string

	// Model is the model that produced the judgment.
	Model string
}
