// Package mcp exposes the analytical layer over stdio MCP so AI agents can
// interrogate a running logly installation. Read-side only: no tool mutates
// the store.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/avolkhov/logly/internal/analyze"
	"github.com/avolkhov/logly/internal/detect"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server with the logly tools registered.
func NewServer(version string, analyzer *analyze.Analyzer, detector *detect.Detector) *Server {
	s := server.NewMCPServer("logly", version, server.WithLogging())

	h := &handlers{analyzer: analyzer, detector: detector}
	registerTools(s, h)

	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds all supported tools to the server.
func registerTools(s *server.MCPServer, h *handlers) {
	healthTool := mcp.NewTool("get_health",
		mcp.WithDescription("Composite system health over a trailing window. Returns the 0-100 score, component sub-scores, issue counts by severity band, and top issues."),
		mcp.WithNumber("hours",
			mcp.Description("Window size in hours (default 24)."),
		),
	)
	s.AddTool(healthTool, h.handleGetHealth)

	postureTool := mcp.NewTool("get_security_posture",
		mcp.WithDescription("Security posture over a trailing window: risk score, posture label, brute-force and high-threat counts, failed logins and bans."),
		mcp.WithNumber("hours",
			mcp.Description("Window size in hours (default 24)."),
		),
	)
	s.AddTool(postureTool, h.handleGetSecurityPosture)

	trendsTool := mcp.NewTool("get_error_trends",
		mcp.WithDescription("Compares error volume between the two halves of a multi-day window and reports worsening/improving/stable with per-hour rates."),
		mcp.WithNumber("days",
			mcp.Description("Window size in days (default 7)."),
		),
	)
	s.AddTool(trendsTool, h.handleGetErrorTrends)

	issuesTool := mcp.NewTool("query_issues",
		mcp.WithDescription("Runs the issue detectors over a trailing window. Optionally filter to one issue type (brute_force, high_threat_ip, banned_ip, sustained_high_cpu, sustained_high_memory, disk_space, error_spike, recurring_error, critical_error, connection_anomaly, network_error_rate)."),
		mcp.WithNumber("hours",
			mcp.Description("Window size in hours (default 24)."),
		),
		mcp.WithString("type",
			mcp.Description("Restrict to one issue type; omit for all."),
		),
	)
	s.AddTool(issuesTool, h.handleQueryIssues)
}
