package codison

import (
	"encoding/json"
	"fmt"
)

// MessageKind identifies the variant of a Message.
type MessageKind string

const (
	KindUserTurn        MessageKind = "user"
	KindAssistantTurn   MessageKind = "assistant"
	KindToolCallRequest MessageKind = "tool_call"
	KindToolCallResult  MessageKind = "tool_result"
)

// Message is a single conversation history entry.
// The set of variants is closed: UserTurn, AssistantTurn, ToolCallRequest
// and ToolCallResult.
type Message interface {
	Kind() MessageKind
	isMessage()
}

// UserTurn is text submitted by the user.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn is the complete prose of one model turn.
type AssistantTurn struct {
	Content string `json:"content"`
}

// ToolCallRequest records a tool invocation requested by the model.
type ToolCallRequest struct {
	CallID string         `json:"call_id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
}

// ToolCallResult records the output of a previously requested tool call.
type ToolCallResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Output string `json:"output"`
}

func (UserTurn) Kind() MessageKind        { return KindUserTurn }
func (AssistantTurn) Kind() MessageKind   { return KindAssistantTurn }
func (ToolCallRequest) Kind() MessageKind { return KindToolCallRequest }
func (ToolCallResult) Kind() MessageKind  { return KindToolCallResult }

func (UserTurn) isMessage()        {}
func (AssistantTurn) isMessage()   {}
func (ToolCallRequest) isMessage() {}
func (ToolCallResult) isMessage()  {}

// ArgsJSON returns the request arguments encoded as a JSON object.
func (r ToolCallRequest) ArgsJSON() string {
	if len(r.Args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(r.Args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

type envelope struct {
	Type MessageKind     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalMessages encodes a message sequence as a JSON array of typed envelopes.
func MarshalMessages(msgs []Message) ([]byte, error) {
	out := make([]envelope, 0, len(msgs))
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, envelope{Type: m.Kind(), Data: data})
	}
	return json.Marshal(out)
}

// UnmarshalMessages decodes data produced by MarshalMessages.
func UnmarshalMessages(data []byte) ([]Message, error) {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(envs))
	for i, env := range envs {
		m, err := decodeMessage(env)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func decodeMessage(env envelope) (Message, error) {
	switch env.Type {
	case KindUserTurn:
		var m UserTurn
		err := json.Unmarshal(env.Data, &m)
		return m, err
	case KindAssistantTurn:
		var m AssistantTurn
		err := json.Unmarshal(env.Data, &m)
		return m, err
	case KindToolCallRequest:
		var m ToolCallRequest
		err := json.Unmarshal(env.Data, &m)
		return m, err
	case KindToolCallResult:
		var m ToolCallResult
		err := json.Unmarshal(env.Data, &m)
		return m, err
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}
