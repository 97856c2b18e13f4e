package schemacheck_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/adapter/outbound/schemacheck"
	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
)

func newTestChecker() *schemacheck.Checker {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return schemacheck.New(logger)
}

var timeSchema = domain.ObjectSchema(map[string]domain.JSONSchemaProps{
	"format":  {Type: "string", Default: "iso"},
	"verbose": {Type: "boolean"},
})

var fileSchema = domain.ObjectSchema(map[string]domain.JSONSchemaProps{
	"file_path": {Type: "string"},
	"encoding":  {Type: "string", Enum: []any{"utf-8", "ascii"}},
	"limit":     {Type: "integer"},
	"tags":      {Type: "array", Items: &domain.JSONSchemaProps{Type: "string"}},
}, "file_path")

func TestChecker_Compile(t *testing.T) {
	checker := newTestChecker()

	tests := []struct {
		name    string
		schema  domain.JSONSchemaProps
		wantErr bool
	}{
		{name: "Object schema", schema: fileSchema},
		{name: "Empty object schema", schema: domain.ObjectSchema(nil)},
		{name: "Unknown property type", schema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{"x": {Type: "bogus"}}), wantErr: true},
		{name: "Non-object top level", schema: domain.JSONSchemaProps{Type: "string"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checker.Compile(tt.schema)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChecker_Validate(t *testing.T) {
	checker := newTestChecker()

	tests := []struct {
		name        string
		schema      domain.JSONSchemaProps
		args        map[string]any
		want        map[string]any
		wantErrPart string
	}{
		{
			name:   "Valid arguments pass through",
			schema: fileSchema,
			args:   map[string]any{"file_path": "a.txt", "limit": float64(3), "tags": []any{"x"}},
			want:   map[string]any{"file_path": "a.txt", "limit": float64(3), "tags": []any{"x"}},
		},
		{
			name:   "Default filled in",
			schema: timeSchema,
			args:   map[string]any{},
			want:   map[string]any{"format": "iso"},
		},
		{
			name:   "Explicit value wins over default",
			schema: timeSchema,
			args:   map[string]any{"format": "%Y"},
			want:   map[string]any{"format": "%Y"},
		},
		{
			name:        "Missing required property",
			schema:      fileSchema,
			args:        map[string]any{},
			wantErrPart: `property "file_path" is missing`,
		},
		{
			name:        "Wrong type",
			schema:      fileSchema,
			args:        map[string]any{"file_path": float64(42)},
			wantErrPart: "file_path",
		},
		{
			name:        "Value outside enum",
			schema:      fileSchema,
			args:        map[string]any{"file_path": "a.txt", "encoding": "latin-1"},
			wantErrPart: "encoding",
		},
		{
			name:        "Fractional integer",
			schema:      fileSchema,
			args:        map[string]any{"file_path": "a.txt", "limit": 1.5},
			wantErrPart: "limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.Validate(tt.schema, tt.args)
			if tt.wantErrPart != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrPart)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChecker_ValidateDoesNotMutateInput(t *testing.T) {
	checker := newTestChecker()
	args := map[string]any{}

	got, err := checker.Validate(timeSchema, args)
	require.NoError(t, err)
	assert.Equal(t, "iso", got["format"])
	assert.Empty(t, args)
}
