package prediction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NormalizeParams resolves every positional parameter of kind against raw
// and returns the values in engine order. Missing, null and empty-string
// values take the parameter's default.
func NormalizeParams(kind Kind, raw map[string]any) []string {
	params := operations[kind].params
	values := make([]string, len(params))
	for i, p := range params {
		v, ok := stringParam(raw, p.Name)
		if !ok {
			v = p.Default
		}
		values[i] = v
	}
	return values
}

// stringParam renders a JSON-decoded value as a single argv element.
// The second result is false when the value should fall back to the default.
func stringParam(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	default:
		s = fmt.Sprint(val)
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// StringParams converts a flat string map (CLI key=value pairs, NATS
// headers) into the generic parameter map accepted by the orchestrator.
func StringParams(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
