package mcp

import (
	"github.com/custodia-labs/mentions/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search finds opinion records by block text.
	Search driving.SearchService

	// Results reads the ledger.
	Results driving.ResultsService

	// Export reads export snapshots. Optional; without it get_export
	// reports the tool as unavailable.
	Export driving.ExportService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Results == nil {
		return ErrMissingResultsService
	}
	return nil
}
