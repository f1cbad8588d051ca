package types

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// NormalizeJSON maps numeric values of any Go type onto float64 so values
// decoded from JSON, YAML or built in code compare consistently.
func NormalizeJSON(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeJSON(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return v
	}
}

// JSONEqual compares two JSON-like values after numeric normalization.
func JSONEqual(a, b any) bool {
	return reflect.DeepEqual(NormalizeJSON(a), NormalizeJSON(b))
}

// IsBlank reports whether v is nil or an empty/whitespace string.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// StringValue renders scalar JSON values as strings; numbers with no
// fractional part print without a decimal point.
func StringValue(v any) string {
	switch val := NormalizeJSON(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}
