package codison

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolSpec_SchemaMap(t *testing.T) {
	t.Run("nil parameters", func(t *testing.T) {
		assert.Equal(t, map[string]any{"type": "object"}, ToolSpec{}.SchemaMap())
	})

	t.Run("decodes schema", func(t *testing.T) {
		spec := ToolSpec{Parameters: json.RawMessage(`{"type":"object","required":["path"]}`)}
		m := spec.SchemaMap()
		assert.Equal(t, "object", m["type"])
		assert.Equal(t, []any{"path"}, m["required"])
	})

	t.Run("invalid schema", func(t *testing.T) {
		spec := ToolSpec{Parameters: json.RawMessage(`not json`)}
		assert.Equal(t, map[string]any{"type": "object"}, spec.SchemaMap())
	})
}

type recordingHandler struct{ seen []string }

func (h *recordingHandler) OnStart(Start) error             { h.seen = append(h.seen, "start"); return nil }
func (h *recordingHandler) OnPartialText(PartialText) error { h.seen = append(h.seen, "partial"); return nil }
func (h *recordingHandler) OnFullText(FullText) error       { h.seen = append(h.seen, "full"); return nil }
func (h *recordingHandler) OnToolCall(ToolCall) error       { h.seen = append(h.seen, "tool"); return nil }
func (h *recordingHandler) OnToolStart(ToolStart) error     { h.seen = append(h.seen, "tool_start"); return nil }
func (h *recordingHandler) OnToolEnd(ToolEnd) error         { h.seen = append(h.seen, "tool_end"); return nil }
func (h *recordingHandler) OnUsage(UsageReport) error       { h.seen = append(h.seen, "usage"); return nil }

func TestProviderEvent_Dispatch(t *testing.T) {
	h := &recordingHandler{}
	events := []ProviderEvent{
		Start{TurnID: "t1"},
		PartialText{Delta: "a"},
		ToolStart{CallID: "c"},
		ToolEnd{CallID: "c"},
		ToolCall{Name: "ls"},
		UsageReport{},
		FullText{Content: "a"},
	}
	for _, e := range events {
		assert.NoError(t, e.Dispatch(h))
	}
	assert.Equal(t, []string{"start", "partial", "tool_start", "tool_end", "tool", "usage", "full"}, h.seen)
}

func TestUsage_Add(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5}.Add(Usage{InputTokens: 3, OutputTokens: 2})
	assert.Equal(t, Usage{InputTokens: 13, OutputTokens: 7}, u)
	assert.False(t, u.IsZero())
	assert.True(t, Usage{}.IsZero())
}
