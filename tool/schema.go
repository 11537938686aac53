package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a JSON schema for the arguments struct T. The result is
// an object schema with named properties, a required list and
// additionalProperties set to false.
func SchemaFor[T any]() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var args T
	reflected := reflector.Reflect(args)

	schema := map[string]any{
		"type":                 "object",
		"properties":           reflected.Properties,
		"additionalProperties": false,
	}
	if reflected.Properties == nil || reflected.Properties.Len() == 0 {
		schema["properties"] = map[string]any{}
	}
	if len(reflected.Required) > 0 {
		schema["required"] = reflected.Required
	}
	return json.Marshal(schema)
}

// MustSchemaFor is like SchemaFor but panics on error.
func MustSchemaFor[T any]() json.RawMessage {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return s
}
