package invoker_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/invoker"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
)

func newTestExecutor(t *testing.T, opts invoker.Options) *invoker.Executor {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := invoker.NewExecutor(opts, logger)
	t.Cleanup(e.Close)
	return e
}

func funcTool(name string, fn func(ctx context.Context, args map[string]any) (any, error)) domain.FuncTool {
	return domain.FuncTool{Definition: domain.Tool{Name: name, InputSchema: domain.ObjectSchema(nil)}, Fn: fn}
}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name        string
		fn          func(ctx context.Context, args map[string]any) (any, error)
		wantIsError bool
		wantText    string
	}{
		{
			name: "Success - map result is indented JSON",
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				return map[string]any{"result": 4}, nil
			},
			wantText: "{\n  \"result\": 4\n}",
		},
		{
			name: "Success - string result is a JSON string",
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				return "hello", nil
			},
			wantText: `"hello"`,
		},
		{
			name: "Failure - tool error",
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, errors.New("disk full")
			},
			wantIsError: true,
			wantText:    "tool execution failed: disk full",
		},
		{
			name: "Failure - panic is contained",
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				panic("kaboom")
			},
			wantIsError: true,
			wantText:    "tool execution failed: panic: kaboom",
		},
		{
			name: "Failure - unencodable result",
			fn: func(ctx context.Context, args map[string]any) (any, error) {
				return make(chan int), nil
			},
			wantIsError: true,
			wantText:    "tool execution failed: failed to encode result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(t, invoker.Options{Timeout: time.Second})
			result := e.Execute(context.Background(), funcTool("t", tt.fn), map[string]any{})

			assert.Equal(t, tt.wantIsError, result.IsError)
			require.Len(t, result.Content, 1)
			assert.Equal(t, "text", result.Content[0].Type)
			assert.Contains(t, result.Text(), tt.wantText)
		})
	}
}

func TestExecutor_Timeout(t *testing.T) {
	e := newTestExecutor(t, invoker.Options{Timeout: 50 * time.Millisecond})
	sawCancel := make(chan struct{})

	slow := funcTool("slow", func(ctx context.Context, args map[string]any) (any, error) {
		<-ctx.Done()
		close(sawCancel)
		return "late", nil
	})

	start := time.Now()
	result := e.Execute(context.Background(), slow, nil)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, result.IsError)
	assert.Equal(t, "tool execution timed out after 50ms", result.Text())

	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Fatal("tool did not observe cancellation")
	}
}

func TestExecutor_SlowToolDoesNotBlockFastTool(t *testing.T) {
	e := newTestExecutor(t, invoker.Options{Timeout: 5 * time.Second})
	release := make(chan struct{})

	slow := funcTool("slow", func(ctx context.Context, args map[string]any) (any, error) {
		<-release
		return "slow", nil
	})
	fast := funcTool("fast", func(ctx context.Context, args map[string]any) (any, error) {
		return "fast", nil
	})

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		result := e.Execute(context.Background(), slow, nil)
		assert.Equal(t, `"slow"`, result.Text())
	}()

	result := e.Execute(context.Background(), fast, nil)
	assert.False(t, result.IsError)
	assert.Equal(t, `"fast"`, result.Text())

	close(release)
	<-slowDone
}

func TestExecutor_MaxConcurrent(t *testing.T) {
	e := newTestExecutor(t, invoker.Options{Timeout: 5 * time.Second, MaxConcurrent: 2})

	var running, peak atomic.Int32
	tool := funcTool("busy", func(ctx context.Context, args map[string]any) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.False(t, e.Execute(context.Background(), tool, nil).IsError)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecutor_ClosedRejectsWork(t *testing.T) {
	e := newTestExecutor(t, invoker.Options{})
	e.Close()

	result := e.Execute(context.Background(), funcTool("t", func(ctx context.Context, args map[string]any) (any, error) {
		return "unreachable", nil
	}), nil)
	assert.True(t, result.IsError)
	assert.Equal(t, "tool execution failed: executor is closed", result.Text())
}
