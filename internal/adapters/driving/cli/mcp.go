package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mentions/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
the recorded opinions and read segments and exports.

By default the server speaks JSON-RPC over stdio. Use --port to serve
streamable HTTP instead, for example to test with MCP Inspector.

Examples:
  # Stdio mode (default, for desktop assistants)
  mentions mcp serve

  # HTTP mode
  mentions mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "mentions": {
        "command": "/path/to/mentions",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if searchService == nil || resultsService == nil {
		return errors.New("search and results services not configured")
	}

	ports := &mcp.Ports{
		Search:  searchService,
		Results: resultsService,
		Export:  exportService,
	}

	var opts []mcp.Option
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			opts = append(opts, mcp.WithDefaultLimit(settings.Search.Limit))
		}
	}

	server, err := mcp.NewServer(ports, opts...)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
