package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mentions/internal/core/domain"
)

// seedSearch stores two videos of judged blocks.
func seedSearch(t *testing.T) (*memory.SegmentLedger, *memory.OpinionLedger) {
	t.Helper()
	ctx := context.Background()
	segments, opinions := memory.NewSegmentLedger(), memory.NewOpinionLedger()

	videos := map[string][]string{
		"vid1": {"Вступление.", "Иванов, почему растут цены?", "Цены растут, Петров виноват.", "Ольга пишет: а выборы?", "Выборы пройдут спокойно."},
		"vid2": {"Вступление.", "Сергей, что с ценами?", "Цены стабильны, Сидоров молодец."},
	}
	for videoID, texts := range videos {
		tr := transcriptOf(videoID, texts...)
		last := len(texts) - 1
		segs := []domain.BoundarySegment{
			{Type: domain.SegmentNarrative, StartIndex: 0, EndIndex: 0},
			{Type: domain.SegmentQA, StartIndex: 1, EndIndex: last},
		}
		_, err := segments.PutBoundaries(ctx, domain.StateOf(tr), segs, false)
		require.NoError(t, err)

		var blocks []domain.QABlock
		for s := 1; s < last; s += 2 {
			blocks = append(blocks, domain.QABlock{BlockID: domain.BlockID(s, s+1), StartIndex: s, EndIndex: s + 1, Text: tr.Text(s, s+1)})
		}
		_, err = segments.PutBlocks(ctx, videoID, domain.Range{Start: 1, End: last}, blocks, false)
		require.NoError(t, err)

		for _, b := range blocks {
			rec := domain.NoOpinion(videoID, b, nil)
			switch {
			case videoID == "vid1" && b.StartIndex == 1:
				rec.Persons, rec.HasOpinion = []string{"Иванов", "Петров"}, true
			case videoID == "vid1":
				rec.Persons = []string{"Ольга"}
			default:
				rec.Persons, rec.HasOpinion = []string{"Сергей", "Сидоров"}, true
			}
			_, _, err := opinions.PutOpinion(ctx, rec, false)
			require.NoError(t, err)
		}
	}
	return segments, opinions
}

func TestSearchService_TextSearch(t *testing.T) {
	ctx := context.Background()
	segments, opinions := seedSearch(t)
	s := NewSearchService(segments, opinions, nil, nil, domain.SearchModeText)

	results, err := s.Search(ctx, "цены", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.Contains(t, r.Text, "Цены")
		assert.Equal(t, 1.0, r.Score)
	}

	results, err = s.Search(ctx, "цены", domain.SearchOptions{VideoID: "vid2"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vid2", results[0].Opinion.VideoID)

	results, err = s.Search(ctx, "петров выборы", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0.5, results[0].Score)

	results, err = s.Search(ctx, "выборы", domain.SearchOptions{OpinionsOnly: true})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search(ctx, "цены", domain.SearchOptions{Person: "сидоров"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vid2", results[0].Opinion.VideoID)

	results, err = s.Search(ctx, "цены", domain.SearchOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.Search(ctx, "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchService_SemanticSearch(t *testing.T) {
	ctx := context.Background()
	segments, opinions := seedSearch(t)
	vectors := memory.NewVectorIndex()
	s := NewSearchService(segments, opinions, vectors, &fakeEmbedder{}, domain.SearchModeText)

	n, err := s.Index(ctx, "vid1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, vectors.Len())

	results, err := s.Search(ctx, "что там с выборы", domain.SearchOptions{Mode: domain.SearchModeSemantic, Limit: 1})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vid1:qa_00003_00004", results[0].Opinion.ChunkID)
	assert.Contains(t, results[0].Text, "Выборы")
	assert.Greater(t, results[0].Score, 0.9)
}

func TestSearchService_SemanticSkipsStaleVectors(t *testing.T) {
	ctx := context.Background()
	segments, opinions := seedSearch(t)
	vectors := memory.NewVectorIndex()
	s := NewSearchService(segments, opinions, vectors, &fakeEmbedder{}, domain.SearchModeSemantic)
	_, err := s.Index(ctx, "vid1")
	require.NoError(t, err)

	_, err = opinions.InvalidateOpinions(ctx, "vid1")
	require.NoError(t, err)

	results, err := s.Search(ctx, "цены", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchService_SemanticUnavailable(t *testing.T) {
	ctx := context.Background()
	segments, opinions := seedSearch(t)

	s := NewSearchService(segments, opinions, nil, nil, domain.SearchModeText)
	_, err := s.Search(ctx, "цены", domain.SearchOptions{Mode: domain.SearchModeSemantic})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	_, err = s.Index(ctx, "vid1")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	s = NewSearchService(segments, opinions, nil, &fakeEmbedder{}, domain.SearchModeText)
	_, err = s.Index(ctx, "vid1")
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
}

func TestSearchService_EmbeddingFailure(t *testing.T) {
	segments, opinions := seedSearch(t)
	s := NewSearchService(segments, opinions, memory.NewVectorIndex(), &fakeEmbedder{err: domain.ErrTransient}, domain.SearchModeSemantic)

	_, err := s.Index(context.Background(), "vid1")
	assert.ErrorIs(t, err, domain.ErrTransient)

	_, err = s.Search(context.Background(), "цены", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestNewSearchService_InvalidModeDefaultsToText(t *testing.T) {
	segments, opinions := seedSearch(t)
	s := NewSearchService(segments, opinions, nil, nil, domain.SearchMode("fuzzy"))

	results, err := s.Search(context.Background(), "цены", domain.SearchOptions{})

	require.NoError(t, err)
	assert.Len(t, results, 2)
}
