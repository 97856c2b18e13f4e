package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

// ErrExecutorClosed is reported for invocations submitted after Close.
var ErrExecutorClosed = errors.New("executor is closed")

// Executor implements usecase.ToolExecutor. Each invocation runs on a pool
// worker so a slow tool never holds up the caller's goroutine past its deadline.
type Executor struct {
	pool    *pool.Pool
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	closed     bool
	submitting sync.WaitGroup
}

// Options configures an Executor.
type Options struct {
	// Timeout bounds a single invocation. Zero disables the deadline.
	Timeout time.Duration
	// MaxConcurrent caps the number of tools running at once. Zero means unbounded.
	MaxConcurrent int
}

// NewExecutor creates a new Executor.
func NewExecutor(opts Options, logger *slog.Logger) *Executor {
	p := pool.New()
	if opts.MaxConcurrent > 0 {
		p = p.WithMaxGoroutines(opts.MaxConcurrent)
	}
	return &Executor{
		pool:    p,
		timeout: opts.Timeout,
		logger:  logger.With("component", "executor"),
	}
}

type outcome struct {
	value any
	err   error
}

// Execute runs tool with args and converts the outcome into a tool result.
func (e *Executor) Execute(ctx context.Context, tool domain.Executable, args map[string]any) mcpjsonrpc.ToolResult {
	name := tool.Describe().Name
	log := e.logger.With(slog.String("tool_name", name))

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	if err := e.submit(func() { done <- e.run(ctx, log, tool, args) }); err != nil {
		log.Warn("Rejected invocation", slog.Any("error", err))
		return failure(err)
	}

	select {
	case out := <-done:
		if out.err != nil {
			log.Warn("Tool returned an error", slog.Any("error", out.err))
			return failure(out.err)
		}
		return success(log, out.value)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && e.timeout > 0 {
			log.Warn("Tool invocation timed out, discarding its result", slog.Duration("timeout", e.timeout))
			return mcpjsonrpc.NewErrorResult(fmt.Sprintf("tool execution timed out after %s", e.timeout))
		}
		log.Warn("Tool invocation cancelled", slog.Any("error", ctx.Err()))
		return mcpjsonrpc.NewErrorResult(fmt.Sprintf("tool execution cancelled: %v", ctx.Err()))
	}
}

// submit hands task to the pool. Pool.Go blocks while all workers are busy,
// so the hand-off happens off the caller's goroutine.
func (e *Executor) submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExecutorClosed
	}
	e.submitting.Add(1)
	go func() {
		defer e.submitting.Done()
		e.pool.Go(task)
	}()
	return nil
}

func (e *Executor) run(ctx context.Context, log *slog.Logger, tool domain.Executable, args map[string]any) outcome {
	// The caller may have given up while the task sat in the queue.
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}

	var out outcome
	var catcher panics.Catcher
	catcher.Try(func() {
		out.value, out.err = tool.Invoke(ctx, args)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		log.Error("Tool panicked", slog.Any("panic", recovered.Value), slog.String("stack", string(recovered.Stack)))
		return outcome{err: fmt.Errorf("panic: %v", recovered.Value)}
	}
	return out
}

// Close stops accepting work and waits for in-flight invocations to finish.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.submitting.Wait()
	e.pool.Wait()
	e.logger.Info("Executor closed")
}

func success(log *slog.Logger, value any) mcpjsonrpc.ToolResult {
	body, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		log.Error("Failed to encode tool result", slog.Any("error", err))
		return failure(fmt.Errorf("failed to encode result: %w", err))
	}
	return mcpjsonrpc.NewTextResult(string(body))
}

func failure(err error) mcpjsonrpc.ToolResult {
	return mcpjsonrpc.NewErrorResult(fmt.Sprintf("tool execution failed: %v", err))
}
