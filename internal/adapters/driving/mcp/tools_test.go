package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{
				{
					Opinion: domain.OpinionRecord{
						ChunkID:    "vid1:qa_00003_00004",
						VideoID:    "vid1",
						Start:      6,
						End:        9,
						Persons:    []string{"Петров"},
						HasOpinion: true,
						Polarity:   domain.PolarityNegative,
					},
					Text:  "Петров опять всех обманул.",
					Score: 0.95,
				},
			},
		}

		server, err := newTestServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{Query: "петров", Limit: 10, Person: "Петров", OpinionsOnly: true, Mode: "semantic"}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "vid1:qa_00003_00004", output.Results[0].ChunkID)
		assert.Equal(t, []string{"Петров"}, output.Results[0].Persons)
		assert.Equal(t, "negative", output.Results[0].Polarity)
		assert.Equal(t, 0.95, output.Results[0].Score)
		assert.Equal(t, "Петров опять всех обманул.", output.Results[0].Text)

		assert.Equal(t, "Петров", mockSearch.opts.Person)
		assert.True(t, mockSearch.opts.OpinionsOnly)
		assert.Equal(t, domain.SearchModeSemantic, mockSearch.opts.Mode)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := newTestServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{Query: "test", Limit: 0}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, 10, mockSearch.opts.Limit)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("search failed"),
		}

		server, err := newTestServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{Query: "test"}
		_, _, err = server.handleSearch(ctx, nil, input)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleGetOpinion(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the record", func(t *testing.T) {
		rec := &domain.OpinionRecord{ChunkID: "vid1:qa_00003_00004", HasOpinion: true}
		server, err := newTestServer(&Ports{Results: &mockResultsService{opinion: rec}})
		require.NoError(t, err)

		_, output, err := server.handleGetOpinion(ctx, nil, OpinionInput{ChunkID: rec.ChunkID})

		require.NoError(t, err)
		assert.Equal(t, *rec, output)
	})

	t.Run("not found names the chunk", func(t *testing.T) {
		server, err := newTestServer(&Ports{Results: &mockResultsService{err: domain.ErrNotFound}})
		require.NoError(t, err)

		_, _, err = server.handleGetOpinion(ctx, nil, OpinionInput{ChunkID: "vid1:qa_00009_00010"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), `"vid1:qa_00009_00010" not found`)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		server, err := newTestServer(&Ports{Results: &mockResultsService{err: domain.ErrInvalidInput}})
		require.NoError(t, err)

		_, _, err = server.handleGetOpinion(ctx, nil, OpinionInput{})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestServer_handleGetSegments(t *testing.T) {
	results := &mockResultsService{
		boundaries: []domain.BoundarySegment{{Type: domain.SegmentQA, StartIndex: 0, EndIndex: 3}},
		blocks:     []domain.QABlock{{BlockID: "qa_00000_00003", StartIndex: 0, EndIndex: 3}},
	}
	server, err := newTestServer(&Ports{Results: results})
	require.NoError(t, err)

	_, output, err := server.handleGetSegments(context.Background(), nil, VideoInput{VideoID: "vid1"})

	require.NoError(t, err)
	assert.Equal(t, "vid1", output.VideoID)
	assert.Len(t, output.BoundarySegments, 1)
	assert.Len(t, output.QABlocks, 1)
}

func TestServer_handleGetExport(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the snapshot", func(t *testing.T) {
		snap := &domain.ExportSnapshot{ExportID: "e1", VideoID: "vid1"}
		server, err := newTestServer(&Ports{Export: &mockExportService{snapshot: snap}})
		require.NoError(t, err)

		_, output, err := server.handleGetExport(ctx, nil, VideoInput{VideoID: "vid1"})

		require.NoError(t, err)
		assert.Equal(t, "e1", output.ExportID)
	})

	t.Run("missing export service", func(t *testing.T) {
		server, err := newTestServer(&Ports{})
		require.NoError(t, err)

		_, _, err = server.handleGetExport(ctx, nil, VideoInput{VideoID: "vid1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("not found", func(t *testing.T) {
		notFound := fmt.Errorf("export vid1: %w", domain.ErrNotFound)
		server, err := newTestServer(&Ports{Export: &mockExportService{err: notFound}})
		require.NoError(t, err)

		_, _, err = server.handleGetExport(ctx, nil, VideoInput{VideoID: "vid1"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), `"vid1" not found`)
	})
}
