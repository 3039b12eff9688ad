package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/mentions/internal/core/domain"
	"github.com/custodia-labs/mentions/internal/core/ports/driven"
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
	"github.com/custodia-labs/mentions/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// embedBatchSize is the number of block texts per embedding request.
const embedBatchSize = 32

// SearchService searches opinion records by their block text.
type SearchService struct {
	segments         driven.SegmentLedger
	opinions         driven.OpinionLedger
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	defaultMode      domain.SearchMode
}

// NewSearchService creates a new search service.
// The vectorIndex and embeddingService parameters are optional (can be nil);
// without them only text search is available.
func NewSearchService(
	segments driven.SegmentLedger,
	opinions driven.OpinionLedger,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	defaultMode domain.SearchMode,
) *SearchService {
	if !defaultMode.IsValid() {
		defaultMode = domain.SearchModeText
	}
	return &SearchService{
		segments:         segments,
		opinions:         opinions,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		defaultMode:      defaultMode,
	}
}

// Search finds opinion records whose block text matches the query.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	mode := opts.Mode
	if !mode.IsValid() {
		mode = s.defaultMode
	}
	logger.Info("Search mode: %s", mode.Description())

	var results []domain.SearchResult
	var err error
	switch mode {
	case domain.SearchModeSemantic:
		results, err = s.semanticSearch(ctx, query, limit, opts)
	default:
		results, err = s.textSearch(ctx, query, opts)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Index embeds every opinion record of a video into the vector index.
func (s *SearchService) Index(ctx context.Context, videoID string) (int, error) {
	if s.embeddingService == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	if s.vectorIndex == nil {
		return 0, domain.ErrVectorIndexUnavailable
	}

	records, err := s.opinions.ListOpinions(ctx, videoID)
	if err != nil {
		return 0, fmt.Errorf("list opinions: %w", err)
	}
	texts, err := s.blockTexts(ctx, videoID)
	if err != nil {
		return 0, err
	}

	var entries []domain.IndexEntry
	for _, r := range records {
		text, ok := texts[r.BlockID]
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		entries = append(entries, domain.IndexEntry{ChunkID: r.ChunkID, VideoID: r.VideoID, Text: text})
	}

	indexed := 0
	for start := 0; start < len(entries); start += embedBatchSize {
		batch := entries[start:min(start+embedBatchSize, len(entries))]
		inputs := make([]string, len(batch))
		for i, e := range batch {
			inputs[i] = e.Text
		}
		vectors, err := s.embeddingService.EmbedBatch(ctx, inputs)
		if err != nil {
			return indexed, fmt.Errorf("embed %s: %w", videoID, err)
		}
		if len(vectors) != len(batch) {
			return indexed, fmt.Errorf("embed %s: %w: %d vectors for %d texts",
				videoID, domain.ErrMalformedResponse, len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
			if err := s.vectorIndex.Upsert(ctx, batch[i]); err != nil {
				return indexed, fmt.Errorf("index %s: %w", batch[i].ChunkID, err)
			}
			indexed++
		}
	}
	logger.Info("Indexed %d blocks of %s", indexed, videoID)
	return indexed, nil
}

func (s *SearchService) textSearch(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	videoIDs, err := s.videoIDs(ctx, opts.VideoID)
	if err != nil {
		return nil, err
	}
	terms := strings.Fields(strings.ToLower(query))

	var results []domain.SearchResult
	for _, videoID := range videoIDs {
		records, err := s.opinions.ListOpinions(ctx, videoID)
		if err != nil {
			return nil, fmt.Errorf("list opinions of %s: %w", videoID, err)
		}
		texts, err := s.blockTexts(ctx, videoID)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if !matchesFilters(r, opts) {
				continue
			}
			text := texts[r.BlockID]
			score := termScore(terms, strings.ToLower(text+" "+strings.Join(r.Persons, " ")))
			if score == 0 {
				continue
			}
			results = append(results, domain.SearchResult{Opinion: r, Text: text, Score: score})
		}
	}
	logger.Debug("Text search: %d results", len(results))
	return results, nil
}

func (s *SearchService) semanticSearch(ctx context.Context, query string, limit int, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	vec, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// Over-fetch to leave room for filters.
	hits, err := s.vectorIndex.Search(ctx, vec, limit*3, opts.VideoID)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	texts := make(map[string]map[string]string)
	var results []domain.SearchResult
	for _, h := range hits {
		rec, err := s.opinions.GetOpinion(ctx, h.ChunkID)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug("Stale vector %s skipped", h.ChunkID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get opinion %s: %w", h.ChunkID, err)
		}
		if !matchesFilters(*rec, opts) {
			continue
		}
		if _, ok := texts[rec.VideoID]; !ok {
			t, err := s.blockTexts(ctx, rec.VideoID)
			if err != nil {
				return nil, err
			}
			texts[rec.VideoID] = t
		}
		results = append(results, domain.SearchResult{
			Opinion: *rec,
			Text:    texts[rec.VideoID][rec.BlockID],
			Score:   h.Similarity,
		})
	}
	return results, nil
}

func (s *SearchService) videoIDs(ctx context.Context, only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	videos, err := s.segments.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.VideoID
	}
	return ids, nil
}

func (s *SearchService) blockTexts(ctx context.Context, videoID string) (map[string]string, error) {
	blocks, err := s.segments.GetBlocks(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("get blocks of %s: %w", videoID, err)
	}
	texts := make(map[string]string, len(blocks))
	for _, b := range blocks {
		texts[b.BlockID] = b.Text
	}
	return texts, nil
}

func matchesFilters(r domain.OpinionRecord, opts domain.SearchOptions) bool {
	if opts.OpinionsOnly && !r.HasOpinion {
		return false
	}
	if opts.Person == "" {
		return true
	}
	for _, p := range r.Persons {
		if strings.EqualFold(p, opts.Person) {
			return true
		}
	}
	return false
}

// termScore is the fraction of query terms found in text.
func termScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	found := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}
