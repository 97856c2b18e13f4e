package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TOOLCALL_WORK_DIRECTORY", filepath.Join(dir, "workspace"))
	t.Setenv("TOOLCALL_LOG_FILE", filepath.Join(dir, "server.log"))
	t.Setenv("TOOLCALL_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCallCommand(t *testing.T) {
	out, err := runCLI(t, "", "call", "calculate", `{"expression":"2+2"}`, "--stats")
	require.NoError(t, err)

	var got struct {
		Outcome struct {
			Success bool           `json:"success"`
			Result  map[string]any `json:"result"`
		} `json:"outcome"`
		Stats struct {
			Initialized bool             `json:"initialized"`
			CallStats   map[string]int64 `json:"call_stats"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Outcome.Success)
	assert.Equal(t, float64(4), got.Outcome.Result["result"])
	assert.True(t, got.Stats.Initialized)
	assert.Equal(t, int64(1), got.Stats.CallStats["calculate"])
}

func TestCallCommand_Failures(t *testing.T) {
	out, err := runCLI(t, "", "call", "nope")
	assert.EqualError(t, err, "tool nope failed: tool not found: nope")
	assert.Contains(t, out, `"success": false`)

	_, err = runCLI(t, "", "call", "calculate", "not-json")
	assert.ErrorContains(t, err, "arguments must be a JSON object")
}

func TestToolsCommand(t *testing.T) {
	out, err := runCLI(t, "", "tools")
	require.NoError(t, err)

	var got struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	var names []string
	for _, tool := range got.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"read_file", "write_file", "calculate", "get_current_time"}, names)
}

func TestServeCommand_Native(t *testing.T) {
	stdin := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`,
		`{"jsonrpc":"1.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n"

	out, err := runCLI(t, stdin, "serve")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	byID := map[float64]map[string]any{}
	for _, line := range lines {
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		byID[resp["id"].(float64)] = resp
	}
	assert.Contains(t, byID[1], "result")
	require.Contains(t, byID[2], "error")
	assert.Equal(t, float64(-32600), byID[2]["error"].(map[string]any)["code"])
}

func TestServeCommand_UnknownEngine(t *testing.T) {
	_, err := runCLI(t, "", "serve", "--engine", "bogus")
	assert.ErrorContains(t, err, "unknown engine")
}
