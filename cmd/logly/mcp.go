package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avolkhov/logly/internal/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the Model Context Protocol (MCP) server",
		Long: `Starts a JSON-RPC server implementing the Model Context Protocol (MCP).
This lets AI agents (e.g. Claude Desktop, Cursor) query system health,
security posture, error trends, and detected issues interactively.

Communication happens over standard input/output (stdio).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			// stdout carries the protocol; the logger writes to stderr only.
			srv := mcp.NewServer(version, a.analyzer(), a.detector())
			return srv.Start(ctx)
		},
	}
}
