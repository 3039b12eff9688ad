// Package mcp provides an MCP (Model Context Protocol) server adapter for Mentions.
// It lets AI assistants read exports, opinion records and search results.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingResultsService is returned when the results service is not provided.
var ErrMissingResultsService = errors.New("mcp: results service is required")
