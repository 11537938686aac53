package codison

import "context"

// Usage is token accounting reported by a provider. The agent loop treats it
// as opaque metadata.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool { return u.InputTokens == 0 && u.OutputTokens == 0 }

// StreamRequest is the input to one provider turn.
type StreamRequest struct {
	// Messages is the complete ordered conversation history.
	Messages []Message
	// PreviousTurnID is the turn id reported by the last Start event, if any.
	PreviousTurnID string
	// Tools lists the capabilities the model may call.
	Tools []ToolSpec
}

// StreamItem is one element of a provider stream. A non-nil Err is the
// terminal failure of the stream.
type StreamItem struct {
	Event ProviderEvent
	Err   error
}

// Provider produces a normalized event stream for one model turn.
//
// Stream returns an error if the turn could not be started. Otherwise the
// returned channel yields events in arrival order and is closed when the turn
// ends. Cancelling ctx aborts the turn and releases the connection.
type Provider interface {
	Name() string
	Model() string
	Stream(ctx context.Context, req StreamRequest) (<-chan StreamItem, error)
}

// ProviderEvent is one event of a provider turn.
// The variants are Start, PartialText, FullText, ToolCall, ToolStart, ToolEnd
// and UsageReport.
type ProviderEvent interface {
	Dispatch(h ProviderHandler) error
}

// ProviderHandler handles every ProviderEvent variant. Adding a variant adds a
// method here, so every implementation must be updated.
type ProviderHandler interface {
	OnStart(Start) error
	OnPartialText(PartialText) error
	OnFullText(FullText) error
	OnToolCall(ToolCall) error
	OnToolStart(ToolStart) error
	OnToolEnd(ToolEnd) error
	OnUsage(UsageReport) error
}

// Start marks the beginning of a turn.
type Start struct {
	TurnID string
}

// PartialText is an incremental text delta.
type PartialText struct {
	Delta string
}

// FullText is the complete text of the turn's prose span.
type FullText struct {
	Content string
	Usage   *Usage
}

// ToolCall is a complete tool invocation request. CallID may be empty if the
// upstream model does not assign identifiers.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
	Usage  *Usage
}

// ToolStart marks the start of a tool call span.
type ToolStart struct {
	CallID string
	Name   string
}

// ToolEnd marks the end of a tool call span.
type ToolEnd struct {
	CallID string
}

// UsageReport carries token accounting not attached to another event.
type UsageReport struct {
	Usage Usage
}

func (e Start) Dispatch(h ProviderHandler) error       { return h.OnStart(e) }
func (e PartialText) Dispatch(h ProviderHandler) error { return h.OnPartialText(e) }
func (e FullText) Dispatch(h ProviderHandler) error    { return h.OnFullText(e) }
func (e ToolCall) Dispatch(h ProviderHandler) error    { return h.OnToolCall(e) }
func (e ToolStart) Dispatch(h ProviderHandler) error   { return h.OnToolStart(e) }
func (e ToolEnd) Dispatch(h ProviderHandler) error     { return h.OnToolEnd(e) }
func (e UsageReport) Dispatch(h ProviderHandler) error { return h.OnUsage(e) }
