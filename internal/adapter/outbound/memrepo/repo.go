package memrepo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/usecase"
)

// Registry provides an in-memory implementation of usecase.ToolRegistry.
// Tools are kept in registration order; every descriptor handed out is a copy.
// NOTE: This implementation is not persistent and data will be lost on restart.
type Registry struct {
	mu          sync.RWMutex
	order       []string                     // Tool names in registration order
	tools       map[string]domain.Executable // Map tool name to implementation
	descriptors map[string]domain.Tool       // Map tool name to the descriptor captured at registration
	calls       map[string]int64             // Map tool name to routed invocation count
	compiler    usecase.SchemaCompiler
	logger      *slog.Logger
}

// NewRegistry creates a new in-memory registry. A nil compiler skips schema checks.
func NewRegistry(compiler usecase.SchemaCompiler, logger *slog.Logger) *Registry {
	return &Registry{
		tools:       make(map[string]domain.Executable),
		descriptors: make(map[string]domain.Tool),
		calls:       make(map[string]int64),
		compiler:    compiler,
		logger:      logger.With("component", "registry"),
	}
}

// Register binds tool to the name in its descriptor.
func (r *Registry) Register(ctx context.Context, tool domain.Executable) error {
	if tool == nil {
		return fmt.Errorf("register failed: nil tool")
	}
	desc := tool.Describe().Clone()
	if desc.Name == "" {
		r.logger.Warn("Rejecting tool with empty name")
		return usecase.ErrEmptyToolName
	}
	if r.compiler != nil {
		if err := r.compiler.Compile(desc.InputSchema); err != nil {
			r.logger.Error("Rejecting tool with invalid input schema",
				slog.String("tool_name", desc.Name), slog.Any("error", err))
			return fmt.Errorf("%w: %s: %v", usecase.ErrInvalidSchema, desc.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.Name]; exists {
		r.logger.Warn("Tool already registered", slog.String("tool_name", desc.Name))
		return fmt.Errorf("%w: %s", usecase.ErrToolAlreadyRegistered, desc.Name)
	}
	r.tools[desc.Name] = tool
	r.descriptors[desc.Name] = desc
	r.calls[desc.Name] = 0
	r.order = append(r.order, desc.Name)
	r.logger.Info("Registered tool", slog.String("tool_name", desc.Name), slog.Int("total_tools", len(r.order)))
	return nil
}

// List returns all tool descriptors in registration order, as they were
// when each tool was registered.
func (r *Registry) List(ctx context.Context) ([]domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.descriptors[name].Clone())
	}
	r.logger.Debug("Listed tools from registry", slog.Int("count", len(list)))
	return list, nil
}

// Resolve retrieves the implementation registered under name.
func (r *Registry) Resolve(ctx context.Context, name string) (domain.Executable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		r.logger.Debug("Tool not found", slog.String("tool_name", name))
		return nil, usecase.ErrToolNotFound
	}
	return tool, nil
}

// RecordCall increments the invocation counter for name. Unknown names are ignored.
func (r *Registry) RecordCall(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.calls[name]; ok {
		r.calls[name]++
	}
}

// CallStats returns a snapshot of the invocation counters.
func (r *Registry) CallStats() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int64, len(r.calls))
	for name, n := range r.calls {
		stats[name] = n
	}
	return stats
}
