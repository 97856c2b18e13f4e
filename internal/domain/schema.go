package domain

// JSONSchemaProps represents the properties of a JSON schema,
// used for the input definition of MCP tools.
// This is a simplified version covering what tool arguments need.
type JSONSchemaProps struct {
	Type        string                     `json:"type,omitempty"`        // e.g., "object", "string", "number", "integer", "boolean", "array"
	Description string                     `json:"description,omitempty"` // Shown to the model
	Properties  map[string]JSONSchemaProps `json:"properties,omitempty"`  // For type "object"
	Required    []string                   `json:"required,omitempty"`    // For type "object"
	Items       *JSONSchemaProps           `json:"items,omitempty"`       // For type "array"
	Format      string                     `json:"format,omitempty"`      // e.g., "date-time", "email"
	Enum        []interface{}              `json:"enum,omitempty"`        // Possible values
	Default     interface{}                `json:"default,omitempty"`     // Applied when an optional argument is missing
}

// ObjectSchema is a convenience constructor for the usual top-level argument object.
func ObjectSchema(properties map[string]JSONSchemaProps, required ...string) JSONSchemaProps {
	if properties == nil {
		properties = map[string]JSONSchemaProps{}
	}
	return JSONSchemaProps{Type: "object", Properties: properties, Required: required}
}

// Clone returns a deep copy of the schema tree.
// Enum and Default values are JSON scalars in practice and are copied shallowly.
func (s JSONSchemaProps) Clone() JSONSchemaProps {
	out := s
	if s.Properties != nil {
		out.Properties = make(map[string]JSONSchemaProps, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.Clone()
		}
	}
	if s.Required != nil {
		out.Required = append([]string(nil), s.Required...)
	}
	if s.Items != nil {
		items := s.Items.Clone()
		out.Items = &items
	}
	if s.Enum != nil {
		out.Enum = append([]interface{}(nil), s.Enum...)
	}
	return out
}
