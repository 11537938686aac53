package agui

import (
	"encoding/json"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/spetersoncode/codison"
)

// Role constants matching AG-UI protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// FromMessages converts conversation history to AG-UI messages, for use in
// a MESSAGES_SNAPSHOT. Tool call requests attach to the assistant message
// that precedes them.
func FromMessages(msgs []codison.Message) []events.Message {
	result := make([]events.Message, 0, len(msgs))
	assistant := -1
	for _, msg := range msgs {
		switch m := msg.(type) {
		case codison.UserTurn:
			assistant = -1
			result = append(result, textMessage(RoleUser, m.Content))
		case codison.AssistantTurn:
			result = append(result, textMessage(RoleAssistant, m.Content))
			assistant = len(result) - 1
		case codison.ToolCallRequest:
			if assistant < 0 {
				result = append(result, events.Message{ID: events.GenerateMessageID(), Role: RoleAssistant})
				assistant = len(result) - 1
			}
			result[assistant].ToolCalls = append(result[assistant].ToolCalls, events.ToolCall{
				ID:   m.CallID,
				Type: "function",
				Function: events.Function{
					Name:      m.Name,
					Arguments: m.ArgsJSON(),
				},
			})
		case codison.ToolCallResult:
			assistant = -1
			tm := textMessage(RoleTool, m.Output)
			tm.ToolCallID = &m.CallID
			result = append(result, tm)
		}
	}
	return result
}

func textMessage(role, content string) events.Message {
	return events.Message{
		ID:      events.GenerateMessageID(),
		Role:    role,
		Content: &content,
	}
}

func argsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
