package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/joss/navigator/internal/domain"
)

// Validator checks tool arguments before execution.
type Validator interface {
	Validate(args map[string]any, schema domain.JSONSchema) error
}

// SchemaValidator covers the subset of JSON Schema the catalog uses:
// required fields, primitive types, string enums and unknown properties.
// Null values for optional fields are treated as absent.
type SchemaValidator struct{}

func (SchemaValidator) Validate(args map[string]any, schema domain.JSONSchema) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	props, _ := schema["properties"].(map[string]any)

	for _, field := range requiredFields(schema) {
		if v, exists := args[field]; !exists || v == nil {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidArgs, field)
		}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := args[key]
		def, ok := props[key].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidArgs, key)
		}
		if value == nil {
			continue
		}
		if expected, _ := def["type"].(string); expected != "" {
			if err := validateType(value, expected); err != nil {
				return fmt.Errorf("%w: field %q: %v", ErrInvalidArgs, key, err)
			}
		}
		if allowed := enumValues(def); len(allowed) > 0 {
			if !containsValue(allowed, value) {
				return fmt.Errorf("%w: field %q must be one of %s", ErrInvalidArgs, key, strings.Join(allowed, ", "))
			}
		}
	}

	return nil
}

func requiredFields(schema domain.JSONSchema) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func enumValues(def map[string]any) []string {
	switch e := def["enum"].(type) {
	case []string:
		return e
	case []any:
		out := make([]string, 0, len(e))
		for _, v := range e {
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	return nil
}

func containsValue(allowed []string, value any) bool {
	s := fmt.Sprint(value)
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float32, float64:
		return true
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}
