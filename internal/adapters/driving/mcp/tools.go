package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// SearchInput is the input schema for the search_opinions tool.
type SearchInput struct {
	Query        string `json:"query" jsonschema:"words to look for in question/answer block text"`
	Limit        int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default: server limit)"`
	VideoID      string `json:"video_id,omitempty" jsonschema:"restrict results to one video"`
	Person       string `json:"person,omitempty" jsonschema:"restrict results to blocks mentioning this person"`
	OpinionsOnly bool   `json:"opinions_only,omitempty" jsonschema:"only return blocks that express an opinion"`
	Mode         string `json:"mode,omitempty" jsonschema:"text or semantic (default: configured mode)"`
}

// SearchOutput is the output schema for the search_opinions tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ChunkID    string   `json:"chunk_id"`
	VideoID    string   `json:"video_id"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Persons    []string `json:"persons"`
	HasOpinion bool     `json:"has_opinion"`
	Polarity   string   `json:"polarity"`
	Score      float64  `json:"score"`
	Text       string   `json:"text,omitempty"`
}

// VideoInput selects a video.
type VideoInput struct {
	VideoID string `json:"video_id" jsonschema:"the video identifier"`
}

// OpinionInput selects an opinion record.
type OpinionInput struct {
	ChunkID string `json:"chunk_id" jsonschema:"the chunk id, video_id:block_id"`
}

// SegmentsOutput is the output schema for the get_segments tool.
type SegmentsOutput struct {
	VideoID          string                   `json:"video_id"`
	BoundarySegments []domain.BoundarySegment `json:"boundary_segments"`
	QABlocks         []domain.QABlock         `json:"qa_blocks"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_opinions",
		Description: "Search question/answer blocks and their opinion records",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_opinion",
		Description: "Get the opinion record of one question/answer block",
	}, s.handleGetOpinion)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_segments",
		Description: "Get the boundary segments and question/answer blocks of a video",
	}, s.handleGetSegments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_export",
		Description: "Get the latest export snapshot of a video",
	}, s.handleGetExport)
}

// handleSearch handles the search_opinions tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	opts := domain.SearchOptions{
		Limit:        limit,
		VideoID:      input.VideoID,
		Person:       input.Person,
		OpinionsOnly: input.OpinionsOnly,
		Mode:         domain.SearchMode(input.Mode),
	}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		rec := results[i].Opinion
		output.Results[i] = SearchResultOutput{
			ChunkID:    rec.ChunkID,
			VideoID:    rec.VideoID,
			Start:      rec.Start,
			End:        rec.End,
			Persons:    rec.Persons,
			HasOpinion: rec.HasOpinion,
			Polarity:   rec.Polarity.String(),
			Score:      results[i].Score,
			Text:       results[i].Text,
		}
	}

	return nil, output, nil
}

// handleGetOpinion handles the get_opinion tool invocation.
func (s *Server) handleGetOpinion(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input OpinionInput,
) (*mcp.CallToolResult, domain.OpinionRecord, error) {
	rec, err := s.ports.Results.Opinion(ctx, input.ChunkID)
	if err != nil {
		return nil, domain.OpinionRecord{}, toolError("get opinion", input.ChunkID, err)
	}
	return nil, *rec, nil
}

// handleGetSegments handles the get_segments tool invocation.
func (s *Server) handleGetSegments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input VideoInput,
) (*mcp.CallToolResult, SegmentsOutput, error) {
	boundaries, blocks, err := s.ports.Results.Segments(ctx, input.VideoID)
	if err != nil {
		return nil, SegmentsOutput{}, toolError("get segments", input.VideoID, err)
	}
	return nil, SegmentsOutput{
		VideoID:          input.VideoID,
		BoundarySegments: boundaries,
		QABlocks:         blocks,
	}, nil
}

// handleGetExport handles the get_export tool invocation.
func (s *Server) handleGetExport(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input VideoInput,
) (*mcp.CallToolResult, domain.ExportSnapshot, error) {
	if s.ports.Export == nil {
		return nil, domain.ExportSnapshot{}, errors.New("export service not configured")
	}
	snap, err := s.ports.Export.Get(ctx, input.VideoID)
	if err != nil {
		return nil, domain.ExportSnapshot{}, toolError("get export", input.VideoID, err)
	}
	return nil, *snap, nil
}

// toolError turns a lookup failure into a message an assistant can act on.
func toolError(op, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s: %q not found", op, id)
	}
	return fmt.Errorf("%s %q: %w", op, id, err)
}
