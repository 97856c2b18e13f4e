package usecase

import (
	"context"
	"errors"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// Standard errors returned by use cases and adapters.
var (
	ErrToolNotFound          = errors.New("tool not found")
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrEmptyToolName         = errors.New("tool name is empty")
	ErrInvalidSchema         = errors.New("invalid tool schema")
	ErrInvalidArguments      = errors.New("invalid arguments")
	ErrNotInitialized        = errors.New("server not initialized")
)

// --- Tool Registry Related ---

// ToolRegistry defines the contract for storing tools and resolving them by name.
// Registration happens at startup; lookups happen on every call.
type ToolRegistry interface {
	// Register binds a tool implementation to its descriptor's name.
	// It fails with ErrToolAlreadyRegistered for a name that is taken.
	Register(ctx context.Context, tool domain.Executable) error

	// List returns descriptors in registration order. The slice is a copy.
	List(ctx context.Context) ([]domain.Tool, error)

	// Resolve returns the implementation bound to name, or ErrToolNotFound.
	Resolve(ctx context.Context, name string) (domain.Executable, error)

	// RecordCall counts one routed invocation of name.
	RecordCall(name string)

	// CallStats returns a snapshot of the invocation counters.
	CallStats() map[string]int64
}

// SchemaCompiler checks that a tool's input schema is itself a valid JSON Schema.
type SchemaCompiler interface {
	Compile(schema domain.JSONSchemaProps) error
}

// ArgumentValidator checks call arguments against a tool's input schema.
// It returns the arguments with schema defaults filled in.
type ArgumentValidator interface {
	Validate(schema domain.JSONSchemaProps, args map[string]any) (map[string]any, error)
}

// --- Tool Execution Related ---

// ToolExecutor runs a tool implementation and converts whatever it returns,
// including faults, into a tool result. It never returns a Go error.
type ToolExecutor interface {
	Execute(ctx context.Context, tool domain.Executable, args map[string]any) mcpjsonrpc.ToolResult
}
