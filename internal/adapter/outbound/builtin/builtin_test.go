package builtin_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/builtin"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/memrepo"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/schemacheck"
)

var fixedNow = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.Local)

func fixedClock() time.Time { return fixedNow }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func invoke(t *testing.T, fn func(context.Context, map[string]any) (any, error), args map[string]any) (map[string]any, error) {
	t.Helper()
	out, err := fn(context.Background(), args)
	if err != nil {
		return nil, err
	}
	result, ok := out.(map[string]any)
	require.True(t, ok, "unexpected result type %T", out)
	return result, nil
}

func TestCalculateTool(t *testing.T) {
	tool := builtin.CalculateTool(fixedClock)

	tests := []struct {
		expression string
		want       any
		wantType   string
	}{
		{"2+2", int64(4), "int"},
		{"2 + 3 * 4", int64(14), "int"},
		{"(2 + 3) * 4", int64(20), "int"},
		{"7/2", 3.5, "float"},
		{"8/2", 4.0, "float"},
		{"7//2", int64(3), "int"},
		{"-7//2", int64(-4), "int"},
		{"-7 % 3", int64(2), "int"},
		{"7 % -3", int64(-2), "int"},
		{"2**10", int64(1024), "int"},
		{"2**3**2", int64(512), "int"},
		{"-2**2", int64(-4), "int"},
		{"2**-1", 0.5, "float"},
		{"1.5*2", 3.0, "float"},
		{"--3", int64(3), "int"},
		{"+.5 + 1", 1.5, "float"},
		{"7.5 // 2", 3.0, "float"},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			result, err := invoke(t, tool.Invoke, map[string]any{"expression": tt.expression})
			require.NoError(t, err)
			assert.Equal(t, "calculate", result["operation"])
			assert.Equal(t, tt.expression, result["expression"])
			assert.Equal(t, tt.want, result["result"])
			assert.Equal(t, tt.wantType, result["result_type"])
			assert.Equal(t, "2024-03-05T14:07:09.000000", result["timestamp"])
		})
	}
}

func TestCalculateTool_Errors(t *testing.T) {
	tool := builtin.CalculateTool(fixedClock)

	tests := []struct {
		name       string
		expression string
		wantErr    string
	}{
		{"Division by zero", "1/0", "division by zero"},
		{"Floor division by zero", "1//0", "division by zero"},
		{"Modulo by zero", "5 % 0", "division by zero"},
		{"Disallowed characters", "__import__('os')", "disallowed character"},
		{"Letters", "2 + x", "disallowed character"},
		{"Dangling operator", "2+", "unexpected end of expression"},
		{"Unclosed paren", "(1+2", "expected )"},
		{"Adjacent numbers", "1 2", "unexpected number"},
		{"Empty", "   ", "expression is empty"},
		{"Overflow", "9223372036854775807 + 1", "integer overflow"},
		{"Bad number", "1.2.3", "invalid number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, tool.Invoke, map[string]any{"expression": tt.expression})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "calculation failed")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCurrentTimeTool(t *testing.T) {
	tool := builtin.CurrentTimeTool(fixedClock)
	stamp := float64(fixedNow.Unix())

	tests := []struct {
		name    string
		args    map[string]any
		wantFmt string
		want    string
	}{
		{"Default is iso", map[string]any{}, "iso", "2024-03-05T14:07:09.000000"},
		{"Timestamp", map[string]any{"format": "timestamp"}, "timestamp", strconv.FormatFloat(stamp, 'f', -1, 64)},
		{"Strftime pattern", map[string]any{"format": "%Y-%m-%d %H:%M:%S"}, "%Y-%m-%d %H:%M:%S", "2024-03-05 14:07:09"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := invoke(t, tool.Invoke, tt.args)
			require.NoError(t, err)
			assert.Equal(t, "get_current_time", result["operation"])
			assert.Equal(t, tt.wantFmt, result["format"])
			assert.Equal(t, tt.want, result["formatted_time"])
			assert.Equal(t, stamp, result["timestamp"])
			assert.Equal(t, "2024-03-05T14:07:09.000000", result["iso_format"])
			assert.Equal(t, map[string]int{
				"year": 2024, "month": 3, "day": 5, "hour": 14, "minute": 7, "second": 9,
			}, result["components"])
		})
	}
}

func newPolicy(t *testing.T) builtin.FilePolicy {
	return builtin.FilePolicy{
		Root:              t.TempDir(),
		AllowedExtensions: []string{".txt", ".md", ".json", ".csv", ".log"},
		MaxFileSize:       64,
	}
}

func TestFileTools_WriteThenRead(t *testing.T) {
	policy := newPolicy(t)
	write := builtin.WriteFileTool(policy, fixedClock)
	read := builtin.ReadFileTool(policy, fixedClock)
	content := "héllo\nworld\n"

	written, err := invoke(t, write.Invoke, map[string]any{"path": "notes/day1/a.txt", "content": content})
	require.NoError(t, err)
	assert.Equal(t, "write_file", written["operation"])
	assert.Equal(t, "notes/day1/a.txt", written["path"])
	assert.Equal(t, len(content), written["size"])

	onDisk, err := os.ReadFile(filepath.Join(policy.Root, "notes", "day1", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte(content), onDisk)

	got, err := invoke(t, read.Invoke, map[string]any{"path": "notes/day1/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "read_file", got["operation"])
	assert.Equal(t, content, got["content"])
	assert.Equal(t, len(content), got["size"])

	// Absolute paths inside the root are accepted too.
	abs := filepath.Join(policy.Root, "notes", "day1", "a.txt")
	got, err = invoke(t, read.Invoke, map[string]any{"path": abs})
	require.NoError(t, err)
	assert.Equal(t, content, got["content"])
}

func TestFileTools_PolicyViolations(t *testing.T) {
	policy := newPolicy(t)
	require.NoError(t, os.WriteFile(filepath.Join(policy.Root, "big.txt"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(policy.Root, "bin.txt"), []byte{0xff, 0xfe}, 0o644))

	write := builtin.WriteFileTool(policy, fixedClock)
	read := builtin.ReadFileTool(policy, fixedClock)

	tests := []struct {
		name    string
		fn      func(context.Context, map[string]any) (any, error)
		args    map[string]any
		wantErr string
	}{
		{"Write escapes root", write.Invoke, map[string]any{"path": "../escape.txt", "content": "x"}, builtin.ErrPathEscapesRoot.Error()},
		{"Read absolute outside root", read.Invoke, map[string]any{"path": "/etc/hostname.txt"}, builtin.ErrPathEscapesRoot.Error()},
		{"Write disallowed extension", write.Invoke, map[string]any{"path": "run.sh", "content": "x"}, builtin.ErrExtensionNotAllowed.Error()},
		{"Write too large", write.Invoke, map[string]any{"path": "a.txt", "content": string(make([]byte, 65))}, builtin.ErrFileTooLarge.Error()},
		{"Read too large", read.Invoke, map[string]any{"path": "big.txt"}, builtin.ErrFileTooLarge.Error()},
		{"Read missing file", read.Invoke, map[string]any{"path": "missing.txt"}, "file does not exist"},
		{"Read binary file", read.Invoke, map[string]any{"path": "bin.txt"}, "not valid UTF-8"},
		{"Read empty path", read.Invoke, map[string]any{"path": ""}, "path is empty"},
		{"Write missing content", write.Invoke, map[string]any{"path": "a.txt"}, `missing argument "content"`},
		{"Read wrong type", read.Invoke, map[string]any{"path": 12.0}, `argument "path" must be a string`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invoke(t, tt.fn, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := os.Stat(filepath.Join(filepath.Dir(policy.Root), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	registry := memrepo.NewRegistry(schemacheck.New(logger), logger)

	require.NoError(t, builtin.Register(ctx, registry, newPolicy(t), logger))

	tools, err := registry.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"read_file", "write_file", "calculate", "get_current_time"}, names)
	assert.Equal(t, "iso", tools[3].InputSchema.Properties["format"].Default)

	// A second registration collides with the first.
	assert.Error(t, builtin.Register(ctx, registry, newPolicy(t), logger))
}
