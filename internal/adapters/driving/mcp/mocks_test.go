package mcp

import (
	"context"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	opts    domain.SearchOptions
	err     error
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.opts = opts
	return m.results, m.err
}

func (m *mockSearchService) Index(_ context.Context, _ string) (int, error) {
	return len(m.results), m.err
}

// mockResultsService is a mock implementation of driving.ResultsService.
type mockResultsService struct {
	videos     []domain.VideoState
	boundaries []domain.BoundarySegment
	blocks     []domain.QABlock
	opinion    *domain.OpinionRecord
	opinions   []domain.OpinionRecord
	err        error
}

func (m *mockResultsService) Videos(_ context.Context) ([]domain.VideoState, error) {
	return m.videos, m.err
}

func (m *mockResultsService) Segments(_ context.Context, _ string) ([]domain.BoundarySegment, []domain.QABlock, error) {
	return m.boundaries, m.blocks, m.err
}

func (m *mockResultsService) Opinion(_ context.Context, _ string) (*domain.OpinionRecord, error) {
	return m.opinion, m.err
}

func (m *mockResultsService) Opinions(_ context.Context, _ string) ([]domain.OpinionRecord, error) {
	return m.opinions, m.err
}

func (m *mockResultsService) Purge(_ context.Context, _ string) error {
	return m.err
}

// mockExportService is a mock implementation of driving.ExportService.
type mockExportService struct {
	snapshot *domain.ExportSnapshot
	err      error
}

func (m *mockExportService) Export(_ context.Context, _ string) (*domain.ExportSnapshot, error) {
	return m.snapshot, m.err
}

func (m *mockExportService) Get(_ context.Context, _ string) (*domain.ExportSnapshot, error) {
	return m.snapshot, m.err
}

func newTestServer(ports *Ports) (*Server, error) {
	if ports.Search == nil {
		ports.Search = &mockSearchService{}
	}
	if ports.Results == nil {
		ports.Results = &mockResultsService{}
	}
	return NewServer(ports)
}
