package services

import (
	"encoding/json"
	"fmt"
)

// SerializeMetadata flattens caller metadata for the index, which only
// stores scalar values. Maps and lists become JSON strings; scalars
// pass through; anything else is stringified.
func SerializeMetadata(metadata map[string]any) map[string]any {
	serialized := make(map[string]any, len(metadata))
	for key, value := range metadata {
		switch v := value.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			serialized[key] = v
		case map[string]any, []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				serialized[key] = fmt.Sprint(v)
				continue
			}
			serialized[key] = string(encoded)
		default:
			serialized[key] = fmt.Sprint(v)
		}
	}
	return serialized
}

// DeserializeMetadata reverses SerializeMetadata. Every string value is
// tried as JSON; values that do not parse stay strings.
func DeserializeMetadata(metadata map[string]any) map[string]any {
	deserialized := make(map[string]any, len(metadata))
	for key, value := range metadata {
		str, ok := value.(string)
		if !ok {
			deserialized[key] = value
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(str), &parsed); err != nil {
			deserialized[key] = str
			continue
		}
		deserialized[key] = parsed
	}
	return deserialized
}
