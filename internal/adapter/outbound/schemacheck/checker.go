package schemacheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
)

// Checker compiles tool input schemas at registration time and validates
// call arguments against them at invocation time.
//
// Compile uses gojsonschema, which checks the schema document against the
// JSON Schema meta-schema. Validate converts the schema to an OpenAPI schema
// and visits the arguments with kin-openapi, which also fills in defaults.
type Checker struct {
	logger *slog.Logger
}

// New creates a new Checker.
func New(logger *slog.Logger) *Checker {
	return &Checker{logger: logger.With("component", "schema_checker")}
}

// Compile reports whether schema is a well-formed JSON Schema.
func (c *Checker) Compile(schema domain.JSONSchemaProps) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw)); err != nil {
		return fmt.Errorf("schema does not compile: %w", err)
	}
	if schema.Type != "" && schema.Type != "object" {
		return fmt.Errorf("top-level schema type must be object, got %q", schema.Type)
	}
	return nil
}

// Validate checks args against schema. It returns a copy of args with
// defaults applied for optional properties the caller left out.
func (c *Checker) Validate(schema domain.JSONSchemaProps, args map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(args))
	for k, v := range args {
		validated[k] = v
	}

	defaulted := false
	err := toOpenAPI(schema).VisitJSON(validated,
		openapi3.VisitAsRequest(),
		openapi3.MultiErrors(),
		openapi3.DefaultsSet(func() { defaulted = true }),
	)
	if err != nil {
		msg := describe(err)
		c.logger.Debug("Arguments failed schema validation", slog.String("reason", msg))
		return nil, errors.New(msg)
	}
	if defaulted {
		c.logger.Debug("Applied schema defaults to arguments")
	}
	return validated, nil
}

// toOpenAPI converts a domain schema into the kin-openapi representation.
// It is the inverse of the usual OpenAPI-to-tool conversion and covers the same subset.
func toOpenAPI(props domain.JSONSchemaProps) *openapi3.Schema {
	schema := &openapi3.Schema{
		Description: props.Description,
		Format:      props.Format,
		Enum:        props.Enum,
		Default:     props.Default,
	}
	if props.Type != "" {
		schema.Type = &openapi3.Types{props.Type}
	}

	switch props.Type {
	case "object":
		schema.Required = props.Required
		if len(props.Properties) > 0 {
			schema.Properties = make(openapi3.Schemas, len(props.Properties))
			for name, prop := range props.Properties {
				schema.Properties[name] = openapi3.NewSchemaRef("", toOpenAPI(prop))
			}
		}
	case "array":
		if props.Items != nil {
			schema.Items = openapi3.NewSchemaRef("", toOpenAPI(*props.Items))
		}
	}
	return schema
}

// describe flattens kin-openapi errors into a short, single-line message.
// The default SchemaError text embeds the whole schema and value.
func describe(err error) string {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		parts := make([]string, 0, len(multi))
		for _, e := range multi {
			parts = append(parts, describe(e))
		}
		return strings.Join(parts, "; ")
	}

	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
			return fmt.Sprintf("%s: %s", strings.Join(pointer, "."), schemaErr.Reason)
		}
		return schemaErr.Reason
	}
	return err.Error()
}
