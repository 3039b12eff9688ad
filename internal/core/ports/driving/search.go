package driving

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// SearchService provides opinion search to external actors.
type SearchService interface {
	// Search finds opinion records whose block text matches the query.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// Index embeds every opinion record of a video into the vector index
	// and returns how many entries were written.
	Index(ctx context.Context, videoID string) (int, error)
}
