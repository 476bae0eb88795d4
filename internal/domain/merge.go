package domain

import (
	"dario.cat/mergo"
)

// MergeConfiguration layers a node's authored configuration over handler
// defaults. Neither input is modified.
func MergeConfiguration(defaults, authored map[string]interface{}) (map[string]interface{}, error) {
	merged := CopyMap(defaults)
	if merged == nil {
		merged = make(map[string]interface{})
	}
	if len(authored) == 0 {
		return merged, nil
	}

	if err := mergo.Merge(&merged, CopyMap(authored), mergo.WithOverride); err != nil {
		return nil, NewConfigError("configuration", err)
	}
	return merged, nil
}

func CopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
