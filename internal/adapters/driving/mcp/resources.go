package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for Mentions resources.
	uriScheme = "mentions://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing videos.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "videos",
		Name:        "videos",
		Description: "Every segmented video with its transcript fingerprint",
		MIMEType:    "application/json",
	}, s.handleVideosResource)

	// Template for a video's opinion records.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "videos/{videoId}/opinions",
		Name:        "video-opinions",
		Description: "Opinion records of a specific video",
		MIMEType:    "application/json",
	}, s.handleOpinionsResource)

	// Template for export snapshots.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "exports/{videoId}",
		Name:        "video-export",
		Description: "Latest export snapshot of a specific video",
		MIMEType:    "application/json",
	}, s.handleExportResource)
}

// handleVideosResource returns every segmented video.
func (s *Server) handleVideosResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	videos, err := s.ports.Results.Videos(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	if videos == nil {
		videos = []domain.VideoState{}
	}
	return jsonResource(req.Params.URI, videos)
}

// handleOpinionsResource returns the opinion records of one video.
func (s *Server) handleOpinionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract videoId from URI: mentions://videos/{videoId}/opinions
	videoID := extractVideoID(req.Params.URI)
	if videoID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records, err := s.ports.Results.Opinions(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("listing opinions: %w", err)
	}
	if records == nil {
		records = []domain.OpinionRecord{}
	}
	return jsonResource(req.Params.URI, records)
}

// handleExportResource returns the export snapshot of one video.
func (s *Server) handleExportResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Export == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract videoId from URI: mentions://exports/{videoId}
	videoID := extractExportID(req.Params.URI)
	if videoID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	snap, err := s.ports.Export.Get(ctx, videoID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting export: %w", err)
	}
	return jsonResource(req.Params.URI, snap)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractVideoID extracts the video ID from a URI like mentions://videos/{videoId}/opinions.
func extractVideoID(uri string) string {
	const prefix = uriScheme + "videos/"
	const suffix = "/opinions"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}

// extractExportID extracts the video ID from a URI like mentions://exports/{videoId}.
func extractExportID(uri string) string {
	const prefix = uriScheme + "exports/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
