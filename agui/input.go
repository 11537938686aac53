package agui

import (
	"errors"
	"strings"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// RunAgentInput represents the AG-UI protocol request for running an agent.
type RunAgentInput struct {
	ThreadID       string           `json:"thread_id"`
	RunID          string           `json:"run_id"`
	Messages       []events.Message `json:"messages"`
	Tools          []any            `json:"tools,omitempty"`
	Context        []any            `json:"context,omitempty"`
	State          any              `json:"state,omitempty"`
	ForwardedProps any              `json:"forwarded_props,omitempty"`
}

var (
	// ErrNoMessages is returned when the input contains no messages.
	ErrNoMessages = errors.New("no messages provided")
	// ErrNoPrompt is returned when no user message has content.
	ErrNoPrompt = errors.New("no user message provided")
)

// Prompt returns the content of the last user message. The server keeps
// its own history, so earlier messages are not replayed.
func (r *RunAgentInput) Prompt() (string, error) {
	if len(r.Messages) == 0 {
		return "", ErrNoMessages
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		msg := r.Messages[i]
		if msg.Role != RoleUser || msg.Content == nil {
			continue
		}
		if content := strings.TrimSpace(*msg.Content); content != "" {
			return content, nil
		}
	}
	return "", ErrNoPrompt
}
