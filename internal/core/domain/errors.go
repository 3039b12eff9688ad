package domain

import (
	"context"
	"errors"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvariantViolation indicates a unit broke a structural invariant
	// (non-contiguous boundaries, out-of-range or overlapping blocks).
	// The unit is dropped; siblings continue.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrMalformedResponse indicates the classification engine returned
	// output that could not be parsed or validated against its schema.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTransient indicates a temporary capability failure (timeout,
	// server error, dropped connection). Retryable.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited indicates the API rate limit was exceeded. Retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrExportIncomplete indicates the ledger does not hold a complete,
	// consistent segmentation for the video. No snapshot is written.
	ErrExportIncomplete = errors.New("export incomplete")

	// ErrRunInProgress indicates a pipeline is already running for the video.
	ErrRunInProgress = errors.New("run in progress")

	// ErrCancelled indicates a run stopped at a stage boundary because its
	// context was cancelled.
	ErrCancelled = errors.New("run cancelled")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

// IsRetryable reports whether err is a capability failure worth retrying.
// Deadline expiry counts; caller cancellation does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}
