package mcpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
)

// decodeArguments decodes raw tools/call arguments and checks them against
// the tool's input schema. Absent arguments decode to an empty map.
//
// Only the object shape, required properties and primitive JSON types are
// checked; nested schemas are the tool's concern.
func decodeArguments(raw json.RawMessage, schema mcp.ToolInputSchema) (map[string]any, error) {
	args := map[string]any{}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] != '{' {
			return nil, fmt.Errorf("%w: arguments must be an object", ErrInvalidArguments)
		}
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}

	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return nil, fmt.Errorf("%w: missing required argument %q", ErrInvalidArguments, name)
		}
	}

	for name, value := range args {
		prop, ok := schema.Properties[name].(map[string]any)
		if !ok {
			continue
		}
		want, _ := prop["type"].(string)
		if want == "" {
			continue
		}
		if !matchesType(value, want) {
			return nil, fmt.Errorf("%w: argument %q must be of type %s", ErrInvalidArguments, name, want)
		}
	}

	return args, nil
}

// matchesType reports whether a decoded JSON value has the given JSON
// schema type. Unknown type names match anything.
func matchesType(value any, jsonType string) bool {
	switch jsonType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}
