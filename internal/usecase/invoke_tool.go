package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/telemetry"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// InvokeToolUseCase handles a tool invocation request: it resolves the tool,
// validates arguments against its schema and runs it through the executor.
// Every application-level failure is returned as an IsError tool result.
type InvokeToolUseCase struct {
	registry  ToolRegistry
	validator ArgumentValidator
	executor  ToolExecutor
	telemetry *telemetry.Instruments
	logger    *slog.Logger
}

// NewInvokeToolUseCase creates a new InvokeToolUseCase.
func NewInvokeToolUseCase(
	registry ToolRegistry,
	validator ArgumentValidator,
	executor ToolExecutor,
	instruments *telemetry.Instruments,
	logger *slog.Logger,
) *InvokeToolUseCase {
	if instruments == nil {
		instruments = telemetry.Noop()
	}
	return &InvokeToolUseCase{
		registry:  registry,
		validator: validator,
		executor:  executor,
		telemetry: instruments,
		logger:    logger.With("usecase", "InvokeTool"),
	}
}

// Execute finds the tool, validates parameters, and runs it.
func (uc *InvokeToolUseCase) Execute(ctx context.Context, toolName string, args map[string]any) mcpjsonrpc.ToolResult {
	return uc.execute(ctx, toolName, args, nil)
}

// ExecuteCall runs a decoded tools/call request. Name or arguments members of
// the wrong JSON type are answered as tool errors like any other bad input.
func (uc *InvokeToolUseCase) ExecuteCall(ctx context.Context, call mcpjsonrpc.CallToolCall) mcpjsonrpc.ToolResult {
	if call.NameErr != nil {
		uc.logger.Warn("Tool invocation with a malformed tool name", slog.Any("error", call.NameErr))
		return mcpjsonrpc.NewErrorResult(call.NameErr.Error())
	}
	return uc.execute(ctx, call.Params.Name, call.Params.Arguments, call.ArgumentsErr)
}

// execute is the shared invocation path. A non-nil argsErr replaces schema
// validation once the tool has been resolved.
func (uc *InvokeToolUseCase) execute(ctx context.Context, toolName string, args map[string]any, argsErr error) mcpjsonrpc.ToolResult {
	log := uc.logger.With(slog.String("tool_name", toolName))
	log.Info("Executing tool invocation")

	if toolName == "" {
		log.Warn("Tool invocation without a tool name")
		return mcpjsonrpc.NewErrorResult(ErrEmptyToolName.Error())
	}

	// 1. Resolve the implementation
	tool, err := uc.registry.Resolve(ctx, toolName)
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			log.Warn("Tool not found")
			return mcpjsonrpc.NewErrorResult(fmt.Sprintf("tool not found: %s", toolName))
		}
		log.Error("Failed to resolve tool", slog.Any("error", err))
		return mcpjsonrpc.NewErrorResult(fmt.Sprintf("failed to resolve tool %s: %v", toolName, err))
	}

	// 2. Count it: the call was routed to a registered tool
	uc.registry.RecordCall(toolName)

	ctx, span := uc.telemetry.StartTool(ctx, toolName)
	started := time.Now()

	// 3. Validate parameters against the input schema, filling defaults
	var result mcpjsonrpc.ToolResult
	validated, err := args, argsErr
	if err == nil {
		validated, err = uc.validator.Validate(tool.Describe().InputSchema, args)
	}
	if err != nil {
		log.Warn("Invalid input parameters", slog.Any("error", err), slog.Any("params", args))
		result = mcpjsonrpc.NewErrorResult(fmt.Errorf("%w for tool %s: %v", ErrInvalidArguments, toolName, err).Error())
	} else {
		// 4. Invoke through the executor
		result = uc.executor.Execute(ctx, tool, validated)
	}

	uc.telemetry.EndTool(ctx, span, toolName, result.IsError, time.Since(started))
	if result.IsError {
		log.Warn("Tool invocation reported an error", slog.String("message", result.Text()))
	} else {
		log.Info("Tool invocation successful")
	}
	return result
}
