// Package server exposes the plan tools over MCP stdio and NATS
// request/reply, and serves Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/c360studio/semplan/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

const instructions = `semplan tracks development plans through workflow stages.
Create a plan with create_plan, move it forward with update_plan, and read it with read_plan.
update_plan refuses to skip incomplete stages unless force is true.`

// NewMCPServer registers every tool of exec on a new MCP server.
func NewMCPServer(name string, exec tools.Executor) (*mcpserver.MCPServer, error) {
	s := mcpserver.NewMCPServer(
		name,
		Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(instructions),
	)

	for _, def := range exec.ListTools() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", def.Name, err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), toolHandler(exec, def.Name))
	}
	return s, nil
}

// toolHandler adapts one tool to an MCP handler. Failures become error
// results so the client sees the message.
func toolHandler(exec tools.Executor, name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := exec.Execute(ctx, tools.ToolCall{Name: name, Arguments: req.GetArguments()})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if res.IsError() {
			return mcp.NewToolResultError(res.Error), nil
		}
		return mcp.NewToolResultText(res.Content), nil
	}
}

// ServeStdio runs the MCP server on in/out until ctx is cancelled or in closes.
func ServeStdio(ctx context.Context, s *mcpserver.MCPServer, in io.Reader, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stdio := mcpserver.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	logger.Info("Serving tools over MCP stdio")
	return stdio.Listen(ctx, in, out)
}
