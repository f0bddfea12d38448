package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:         "mcp",
	Short:       "MCP server commands",
	Long:        `Commands for the Model Context Protocol (MCP) server integration.`,
	Annotations: withAccess(AccessServe),
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can ask
questions about the indexed documentation.

Tools:
  ask      - Answer a question, continuing a session when session_id is given
  search   - Retrieve the most relevant documentation chunks
  history  - Show the turns of a session

By default the server communicates over stdio using JSON-RPC.
Use --port to serve streamable HTTP instead.

Examples:
  # Stdio mode (for desktop assistants)
  docchat mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  docchat mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "docchat": {
        "command": "/path/to/docchat",
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

	ports := &mcp.Ports{
		Answer:   answerService,
		Search:   searchService,
		Ingester: ingester,
	}

	server, err := mcp.NewServer(ports)
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
