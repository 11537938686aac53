package codison

import "encoding/json"

// ToolSpec describes a tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object with named properties, a required
	// list and additionalProperties set to false.
	Parameters json.RawMessage
}

// SchemaMap decodes Parameters into a generic map. A nil or invalid schema
// yields an empty object schema.
func (s ToolSpec) SchemaMap() map[string]any {
	out := map[string]any{}
	if len(s.Parameters) == 0 {
		out["type"] = "object"
		return out
	}
	if err := json.Unmarshal(s.Parameters, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}
