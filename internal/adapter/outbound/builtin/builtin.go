// Package builtin provides the tools every server registers at startup.
package builtin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/usecase"
)

// Tools returns the built-in tools in their registration order.
func Tools(policy FilePolicy, clock Clock) []domain.Executable {
	return []domain.Executable{
		ReadFileTool(policy, clock),
		WriteFileTool(policy, clock),
		CalculateTool(clock),
		CurrentTimeTool(clock),
	}
}

// Register adds the built-in tools to registry.
func Register(ctx context.Context, registry usecase.ToolRegistry, policy FilePolicy, logger *slog.Logger) error {
	for _, tool := range Tools(policy, nil) {
		if err := registry.Register(ctx, tool); err != nil {
			return fmt.Errorf("failed to register built-in tool %s: %w", tool.Describe().Name, err)
		}
	}
	logger.Info("Registered built-in tools",
		slog.String("work_directory", policy.Root),
		slog.Any("allowed_extensions", policy.AllowedExtensions),
		slog.Int64("max_file_size", policy.MaxFileSize))
	return nil
}
