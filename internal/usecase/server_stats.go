package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// ServerStats is a point-in-time view of the server for diagnostics.
type ServerStats struct {
	ServerInfo   mcpjsonrpc.Implementation     `json:"server_info"`
	Initialized  bool                          `json:"initialized"`
	ToolNames    []string                      `json:"tool_names"`
	CallStats    map[string]int64              `json:"call_stats"`
	Capabilities mcpjsonrpc.ServerCapabilities `json:"capabilities"`
}

// ServerStatsUseCase reports registry contents and per-tool call counters.
type ServerStatsUseCase struct {
	registry  ToolRegistry
	handshake *InitializeUseCase
	logger    *slog.Logger
}

// NewServerStatsUseCase creates a new ServerStatsUseCase.
func NewServerStatsUseCase(registry ToolRegistry, handshake *InitializeUseCase, logger *slog.Logger) *ServerStatsUseCase {
	return &ServerStatsUseCase{
		registry:  registry,
		handshake: handshake,
		logger:    logger.With("usecase", "ServerStats"),
	}
}

// Execute collects the current statistics.
func (uc *ServerStatsUseCase) Execute(ctx context.Context) (ServerStats, error) {
	tools, err := uc.registry.List(ctx)
	if err != nil {
		uc.logger.Error("Failed to list tools from registry", slog.Any("error", err))
		return ServerStats{}, fmt.Errorf("failed to list tools from registry: %w", err)
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}

	return ServerStats{
		ServerInfo:   uc.handshake.ServerInfo(),
		Initialized:  uc.handshake.Initialized(),
		ToolNames:    names,
		CallStats:    uc.registry.CallStats(),
		Capabilities: uc.handshake.Capabilities(),
	}, nil
}
