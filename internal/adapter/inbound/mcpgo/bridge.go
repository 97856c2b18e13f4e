package mcpgo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpGoServer "github.com/mark3labs/mcp-go/server"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/usecase"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// Bridge publishes registry tools on a mark3labs/mcp-go server.
// Calls are routed through the same invoke use case as the native router,
// so validation, statistics and error reporting behave identically.
type Bridge struct {
	server     *mcpGoServer.MCPServer
	serveTools *usecase.ServeToolsUseCase
	invokeTool *usecase.InvokeToolUseCase
	logger     *slog.Logger
}

// NewBridge creates a new Bridge announcing the given server identity.
func NewBridge(
	info mcpjsonrpc.Implementation,
	serveTools *usecase.ServeToolsUseCase,
	invokeTool *usecase.InvokeToolUseCase,
	logger *slog.Logger,
) *Bridge {
	return &Bridge{
		server:     mcpGoServer.NewMCPServer(info.Name, info.Version, mcpGoServer.WithToolCapabilities(false)),
		serveTools: serveTools,
		invokeTool: invokeTool,
		logger:     logger.With("component", "mcpgo_bridge"),
	}
}

// Server returns the underlying mcp-go server.
func (b *Bridge) Server() *mcpGoServer.MCPServer {
	return b.server
}

// Sync registers every tool currently in the registry with the mcp-go server.
// It returns the number of tools published.
func (b *Bridge) Sync(ctx context.Context) (int, error) {
	tools, err := b.serveTools.Execute(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tools for mcp-go server: %w", err)
	}

	for _, tool := range tools {
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return 0, fmt.Errorf("failed to encode input schema of %s: %w", tool.Name, err)
		}
		b.server.AddTool(mcp.NewToolWithRawSchema(tool.Name, tool.Description, schema), b.handlerFor(tool.Name))
		b.logger.Debug("Published tool", slog.String("tool_name", tool.Name))
	}
	b.logger.Info("Published tools on mcp-go server", slog.Int("count", len(tools)))
	return len(tools), nil
}

func (b *Bridge) handlerFor(name string) mcpGoServer.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		result := b.invokeTool.Execute(ctx, name, args)
		if result.IsError {
			return mcp.NewToolResultError(result.Text()), nil
		}
		return mcp.NewToolResultText(result.Text()), nil
	}
}

// ServeStdio runs the mcp-go stdio transport until ctx is cancelled or in closes.
func (b *Bridge) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdioServer := mcpGoServer.NewStdioServer(b.server)
	stdioServer.SetErrorLogger(slog.NewLogLogger(b.logger.Handler(), slog.LevelError))
	b.logger.Info("Starting mcp-go stdio server")
	return stdioServer.Listen(ctx, in, out)
}
