package domain

import "context"

// Tool describes a callable operation the server executes on a caller's behalf,
// compliant with the Model Context Protocol (MCP) tools/list entry.
// Based on MCP Spec 2024-11-05: https://modelcontextprotocol.io/specification/2024-11-05
type Tool struct {
	// Name is the unique key of the tool within a registry (e.g. "read_file").
	Name string `json:"name"`

	// Description provides a natural language explanation of what the tool does.
	// This is crucial for the LLM to understand when to use the tool.
	Description string `json:"description"`

	// InputSchema defines the arguments the tool expects, in JSON Schema form.
	InputSchema JSONSchemaProps `json:"inputSchema"`
}

// Clone returns a deep copy, so callers can never reach registry-owned state.
func (t Tool) Clone() Tool {
	t.InputSchema = t.InputSchema.Clone()
	return t
}

// Executable is a tool implementation bound 1:1 to its descriptor.
// Invoke may block; it is only ever called through the execution adapter.
type Executable interface {
	Describe() Tool
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// FuncTool adapts a plain function to Executable.
type FuncTool struct {
	Definition Tool
	Fn         func(ctx context.Context, args map[string]any) (any, error)
}

// Describe implements Executable.
func (f FuncTool) Describe() Tool { return f.Definition }

// Invoke implements Executable.
func (f FuncTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f.Fn(ctx, args)
}
