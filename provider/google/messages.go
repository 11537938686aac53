package google

import (
	"encoding/json"

	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
	"google.golang.org/genai"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// convertMessages maps the history onto contents. Consecutive entries with
// the same role are merged, since the API expects user and model turns to
// alternate.
func convertMessages(messages []codison.Message) []*genai.Content {
	var contents []*genai.Content
	add := func(role string, part *genai.Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}

	for _, msg := range provider.Normalize(messages) {
		switch m := msg.(type) {
		case codison.UserTurn:
			add(roleUser, &genai.Part{Text: m.Content})
		case codison.AssistantTurn:
			add(roleModel, &genai.Part{Text: m.Content})
		case codison.ToolCallRequest:
			add(roleModel, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   m.CallID,
				Name: m.Name,
				Args: m.Args,
			}})
		case codison.ToolCallResult:
			add(roleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.CallID,
				Name:     m.Name,
				Response: functionResponse(m.Output),
			}})
		}
	}
	return contents
}

// functionResponse passes JSON object output through and wraps anything
// else as {"output": output}.
func functionResponse(output string) map[string]any {
	var result map[string]any
	if err := json.Unmarshal([]byte(output), &result); err != nil || result == nil {
		result = map[string]any{"output": output}
	}
	return result
}

func convertTools(tools []codison.ToolSpec) []*genai.Tool {
	funcs := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		funcs[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.SchemaMap()),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: funcs}}
}

// convertSchema translates the JSON Schema subset used by tool parameters.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{}
	switch schema["type"] {
	case "string":
		result.Type = genai.TypeString
	case "number":
		result.Type = genai.TypeNumber
	case "integer":
		result.Type = genai.TypeInteger
	case "boolean":
		result.Type = genai.TypeBoolean
	case "array":
		result.Type = genai.TypeArray
	case "object":
		result.Type = genai.TypeObject
	}

	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				result.Enum = append(result.Enum, s)
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if m, ok := prop.(map[string]any); ok {
				result.Properties[name] = convertSchema(m)
			}
		}
	}
	result.Required = provider.RequiredFields(schema)
	if items, ok := schema["items"].(map[string]any); ok {
		result.Items = convertSchema(items)
	}
	return result
}
