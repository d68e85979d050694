package stepflow

import "encoding/json"

// SerializationPlaceholder replaces a value that could not be captured.
const SerializationPlaceholder = "<serialization_error>"

// Value is a structured, JSON-shaped capture of an arbitrary value:
// nil, bool, float64, string, []any or map[string]any.
type Value = any

// ToValue captures v as a structured value by round-tripping it through JSON.
// Values that cannot be encoded are captured as SerializationPlaceholder.
func ToValue(v any) Value {
	data, err := json.Marshal(v)
	if err != nil {
		return SerializationPlaceholder
	}
	var out Value
	if err := json.Unmarshal(data, &out); err != nil {
		return SerializationPlaceholder
	}
	return out
}

// DecodeValue converts a captured value back into T.
func DecodeValue[T any](v Value) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, NewJSONError(err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, NewJSONError(err)
	}
	return out, nil
}
