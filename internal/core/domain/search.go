package domain

import "math"

// SearchMode defines how opinion search retrieves results.
type SearchMode string

// Available search modes.
const (
	// SearchModeText matches query terms against stored block text.
	SearchModeText SearchMode = "text"

	// SearchModeSemantic ranks indexed blocks by embedding similarity.
	SearchModeSemantic SearchMode = "semantic"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	return m == SearchModeText || m == SearchModeSemantic
}

// RequiresEmbedding returns true if this mode needs an embedding provider.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeSemantic
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeText:
		return "Text (keyword match over block text)"
	case SearchModeSemantic:
		return "Semantic (embedding similarity)"
	default:
		return unknownDescription
	}
}

// AllSearchModes returns all available search modes.
func AllSearchModes() []SearchMode {
	return []SearchMode{SearchModeText, SearchModeSemantic}
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// VideoID restricts results to one video.
	VideoID string

	// Person restricts results to records mentioning this surface form.
	Person string

	// OpinionsOnly drops blocks without an opinion.
	OpinionsOnly bool

	// Mode overrides the configured search mode.
	Mode SearchMode
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Opinion is the matched record.
	Opinion OpinionRecord `json:"opinion"`

	// Text is the block text the record was derived from.
	Text string `json:"text"`

	// Score is the relevance score; higher is better.
	Score float64 `json:"score"`
}

// IndexEntry is one embedded block stored in the vector index.
type IndexEntry struct {
	ChunkID   string
	VideoID   string
	Text      string
	Embedding []float32
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
