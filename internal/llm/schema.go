package llm

// FieldType enumerates the value kinds a Schema can describe.
type FieldType int

const (
	FieldInteger FieldType = iota
	FieldStringArray
)

// Field is one required property of a structured reply.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Min, Max    *float64
}

// Schema is a provider-neutral description of a flat JSON object.
type Schema struct {
	Name   string
	Fields []Field
}

// JSONSchema renders the schema as a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		var prop map[string]any
		switch f.Type {
		case FieldInteger:
			prop = map[string]any{"type": "integer"}
			if f.Min != nil {
				prop["minimum"] = *f.Min
			}
			if f.Max != nil {
				prop["maximum"] = *f.Max
			}
		case FieldStringArray:
			prop = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		props[f.Name] = prop
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Float returns a pointer to v, for Field bounds.
func Float(v float64) *float64 { return &v }
