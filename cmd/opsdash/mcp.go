package main

import (
	"os/signal"
	"syscall"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dashboard tools over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		logger.Info("starting stdio transport", "auth", "disabled")
		// Run blocks until stdin closes or ctx is canceled.
		return a.MCPServer("stdio").Run(ctx, &sdkmcp.StdioTransport{})
	},
}
