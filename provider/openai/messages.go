package openai

import (
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
)

// convertMessages maps the history onto chat messages. Tool call requests
// are folded into the assistant message that precedes them, since the API
// expects one assistant message per turn. Unanswered calls are closed by
// provider.Normalize.
func convertMessages(system string, messages []codison.Message) []openai.ChatCompletionMessageParamUnion {
	var result []openai.ChatCompletionMessageParamUnion
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	// assistant is the open assistant message that tool calls attach to.
	var assistant *openai.ChatCompletionAssistantMessageParam
	for _, msg := range provider.Normalize(messages) {
		switch m := msg.(type) {
		case codison.UserTurn:
			assistant = nil
			result = append(result, openai.UserMessage(m.Content))
		case codison.AssistantTurn:
			assistant = &openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				},
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case codison.ToolCallRequest:
			if assistant == nil {
				assistant = &openai.ChatCompletionAssistantMessageParam{}
				result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
			}
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: m.CallID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      m.Name,
					Arguments: m.ArgsJSON(),
				},
			})
		case codison.ToolCallResult:
			assistant = nil
			result = append(result, openai.ToolMessage(m.Output, m.CallID))
		}
	}
	return result
}

func convertTools(tools []codison.ToolSpec) []openai.ChatCompletionToolParam {
	result := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		result[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.SchemaMap()),
			},
		}
	}
	return result
}
