package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field describes one form field of a document type.
type Field struct {
	Name     string   `json:"name"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Options  []string `json:"options,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
}

// FormSchema is the field list a document type declares for its form data.
type FormSchema struct {
	Fields []Field `json:"fields"`
}

var knownFieldTypes = map[string]bool{
	"text":     true,
	"textarea": true,
	"number":   true,
	"boolean":  true,
	"select":   true,
	"date":     true,
	"file":     true,
}

// Parse decodes and sanity-checks a schema payload.
func Parse(raw []byte) (*FormSchema, error) {
	var s FormSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	seen := map[string]bool{}
	for i, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if f.Type != "" && !knownFieldTypes[f.Type] {
			return nil, fmt.Errorf("field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Type == "select" && len(f.Options) == 0 {
			return nil, fmt.Errorf("select field %q has no options", f.Name)
		}
	}
	return &s, nil
}

// FieldError is one validation failure, keyed by field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate checks form data against the schema. Unknown keys are allowed;
// the form payload is a soft contract and the engine's status heuristic
// depends on extra keys being tolerated.
func (s *FormSchema) Validate(formData map[string]any) []FieldError {
	var errs []FieldError
	for _, f := range s.Fields {
		val, present := formData[f.Name]
		if !present || isEmpty(val) {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Name, Message: "required"})
			}
			continue
		}
		switch f.Type {
		case "number":
			switch val.(type) {
			case float64, int, int64:
			default:
				errs = append(errs, FieldError{Field: f.Name, Message: "must be a number"})
			}
		case "boolean":
			if _, ok := val.(bool); !ok {
				errs = append(errs, FieldError{Field: f.Name, Message: "must be a boolean"})
			}
		case "select":
			str, ok := val.(string)
			if !ok || !contains(f.Options, str) {
				errs = append(errs, FieldError{Field: f.Name, Message: fmt.Sprintf("must be one of %s", strings.Join(f.Options, ", "))})
			}
		}
	}
	return errs
}

// ApplyFieldState returns a copy of the schema with the named fields
// disabled. This is how engine disable actions reach the rendered form.
func (s *FormSchema) ApplyFieldState(disabledFields []string) *FormSchema {
	out := &FormSchema{Fields: make([]Field, len(s.Fields))}
	copy(out.Fields, s.Fields)
	for i := range out.Fields {
		if contains(disabledFields, out.Fields[i].Name) {
			out.Fields[i].Disabled = true
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
