package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
)

// convertMessages maps the history onto alternating user and assistant
// messages. Consecutive entries with the same role share one message, so a
// turn's text and tool_use blocks travel together and tool results for one
// step form a single user message. Every tool_use block is answered, see
// provider.Normalize.
func convertMessages(messages []codison.Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	add := func(role anthropic.MessageParamRole, block anthropic.ContentBlockParamUnion) {
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, block)
			return
		}
		result = append(result, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{block},
		})
	}

	for _, msg := range provider.Normalize(messages) {
		switch m := msg.(type) {
		case codison.UserTurn:
			// Empty text blocks are rejected by the API.
			if m.Content != "" {
				add(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(m.Content))
			}
		case codison.AssistantTurn:
			if m.Content != "" {
				add(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(m.Content))
			}
		case codison.ToolCallRequest:
			args := m.Args
			if args == nil {
				args = map[string]any{}
			}
			add(anthropic.MessageParamRoleAssistant, anthropic.NewToolUseBlock(m.CallID, args, m.Name))
		case codison.ToolCallResult:
			add(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(m.CallID, m.Output, false))
		}
	}
	return result
}

func convertTools(tools []codison.ToolSpec) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := t.SchemaMap()
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   provider.RequiredFields(schema),
				},
			},
		}
	}
	return result
}
