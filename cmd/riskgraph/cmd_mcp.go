package main

import (
	"context"

	"github.com/spf13/cobra"

	"riskgraph/internal/logging"
	mcpserver "riskgraph/internal/mcp"
	"riskgraph/internal/wiring"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing evaluate_transaction,
fallback_decision, list_reviews and resolve_review.

The server monitors its parent process and exits when the client goes away.
Logs go to stderr; stdout carries only protocol messages.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	app, err := wiring.Build(ctx, cfg, wiring.WithVersion(version))
	if err != nil {
		return err
	}
	defer app.Close()

	logger := logging.New("mcp")
	mcpserver.WatchParent(ctx, logger, cancel)
	logger.Info("starting riskgraph MCP server over stdio (parent watchdog active)")
	return app.MCP.Run(ctx)
}
