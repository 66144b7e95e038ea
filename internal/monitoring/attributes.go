package monitoring

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

// SerializeAttributes converts an arbitrary metadata map into primitive-only
// OTLP attributes. The collector's wire format rejects nested values, so maps,
// structs and mixed slices are JSON-encoded into strings first.
func SerializeAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range keys {
		out = append(out, serializeAttribute(k, attrs[k]))
	}
	return out
}

func serializeAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case nil:
		return attribute.String(key, "null")
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case float32:
		return attribute.Float64(key, float64(v))
	case []string:
		return attribute.StringSlice(key, v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return attribute.String(key, fmt.Sprintf("%v", v))
		}
		return attribute.String(key, string(encoded))
	}
}
