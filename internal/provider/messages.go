package provider

import (
	"slices"

	"github.com/spetersoncode/codison"
)

// IncompleteToolOutput is the result reported for a tool call that never
// produced one.
const IncompleteToolOutput = "Error: tool call was not completed"

// Normalize shapes a history for a provider request without changing it.
//
// Assistant text recorded after the tool calls of the same turn is moved in
// front of them. Tool calls still unanswered when the conversation moves on,
// because their batch failed or their run was cancelled, are answered with
// IncompleteToolOutput. Calls at the end of the history are left open.
func Normalize(messages []codison.Message) []codison.Message {
	out := make([]codison.Message, 0, len(messages))

	var (
		open     []codison.ToolCallRequest
		answered = map[string]bool{}
		// firstCall is the index in out of the turn's first tool call.
		firstCall = -1
		results   bool
	)
	closeTurn := func() {
		for _, req := range open {
			if !answered[req.CallID] {
				out = append(out, codison.ToolCallResult{
					CallID: req.CallID,
					Name:   req.Name,
					Output: IncompleteToolOutput,
				})
			}
		}
		open = nil
		clear(answered)
		firstCall = -1
		results = false
	}

	for _, msg := range messages {
		switch m := msg.(type) {
		case codison.UserTurn:
			closeTurn()
		case codison.AssistantTurn:
			if results {
				closeTurn()
			} else if firstCall >= 0 {
				out = slices.Insert(out, firstCall, msg)
				firstCall++
				continue
			}
		case codison.ToolCallRequest:
			if results {
				closeTurn()
			}
			if firstCall < 0 {
				firstCall = len(out)
			}
			open = append(open, m)
		case codison.ToolCallResult:
			answered[m.CallID] = true
			results = true
		}
		out = append(out, msg)
	}
	return out
}
