package mcpgo_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/inbound/mcpgo"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/builtin"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/invoker"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/memrepo"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/schemacheck"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/usecase"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/pkg/shared/mcpjsonrpc"
)

func newTestBridge(t *testing.T) (*mcpgo.Bridge, *memrepo.Registry) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	registry := memrepo.NewRegistry(schemacheck.New(logger), logger)
	require.NoError(t, builtin.Register(ctx, registry, builtin.FilePolicy{Root: t.TempDir()}, logger))

	executor := invoker.NewExecutor(invoker.Options{Timeout: 5 * time.Second}, logger)
	t.Cleanup(executor.Close)

	bridge := mcpgo.NewBridge(
		mcpjsonrpc.Implementation{Name: "Langchain-MCP-Server", Version: "1.0.0"},
		usecase.NewServeToolsUseCase(registry, logger),
		usecase.NewInvokeToolUseCase(registry, schemacheck.New(logger), executor, nil, logger),
		logger,
	)
	n, err := bridge.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	return bridge, registry
}

func send(t *testing.T, bridge *mcpgo.Bridge, raw string) map[string]any {
	t.Helper()
	msg := bridge.Server().HandleMessage(context.Background(), json.RawMessage(raw))
	require.NotNil(t, msg)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestBridge_ListTools(t *testing.T) {
	bridge, _ := newTestBridge(t)
	send(t, bridge, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`)

	resp := send(t, bridge, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	tools := resp["result"].(map[string]any)["tools"].([]any)

	var names []string
	for _, raw := range tools {
		tool := raw.(map[string]any)
		names = append(names, tool["name"].(string))
		assert.Equal(t, "object", tool["inputSchema"].(map[string]any)["type"])
	}
	assert.ElementsMatch(t, []string{"read_file", "write_file", "calculate", "get_current_time"}, names)
}

func TestBridge_CallTool(t *testing.T) {
	bridge, registry := newTestBridge(t)
	send(t, bridge, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`)

	tests := []struct {
		name        string
		params      string
		wantIsError bool
		wantText    string
	}{
		{"Success", `{"name":"calculate","arguments":{"expression":"6*7"}}`, false, `"result": 42`},
		{"Invalid arguments", `{"name":"calculate","arguments":{}}`, true, "invalid arguments for tool calculate"},
		{"Tool fault", `{"name":"calculate","arguments":{"expression":"1/0"}}`, true, "division by zero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, bridge, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":`+tt.params+`}`)
			result := resp["result"].(map[string]any)
			isError, _ := result["isError"].(bool)
			assert.Equal(t, tt.wantIsError, isError)
			content := result["content"].([]any)
			require.Len(t, content, 1)
			assert.Contains(t, content[0].(map[string]any)["text"], tt.wantText)
		})
	}

	assert.Equal(t, int64(3), registry.CallStats()["calculate"])
}
