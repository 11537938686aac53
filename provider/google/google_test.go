package google

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
	"github.com/spetersoncode/codison/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertMessages(t *testing.T) {
	contents := convertMessages([]codison.Message{
		codison.UserTurn{Content: "list files"},
		codison.AssistantTurn{Content: "Looking."},
		codison.ToolCallRequest{CallID: "c1", Name: "ls", Args: map[string]any{"path": "."}},
		codison.ToolCallResult{CallID: "c1", Name: "ls", Output: "a.go"},
		codison.ToolCallResult{CallID: "c2", Name: "stat", Output: `{"size": 3}`},
		codison.UserTurn{Content: "thanks"},
	})

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)

	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "Looking.", contents[1].Parts[0].Text)
	assert.Equal(t, "ls", contents[1].Parts[1].FunctionCall.Name)

	user := contents[2]
	assert.Equal(t, "user", user.Role)
	require.Len(t, user.Parts, 3)
	assert.Equal(t, map[string]any{"output": "a.go"}, user.Parts[0].FunctionResponse.Response)
	assert.Equal(t, map[string]any{"size": float64(3)}, user.Parts[1].FunctionResponse.Response)
	assert.Equal(t, "thanks", user.Parts[2].Text)
}

func TestConvertMessages_UnansweredCalls(t *testing.T) {
	contents := convertMessages([]codison.Message{
		codison.UserTurn{Content: "go"},
		codison.ToolCallRequest{CallID: "c1", Name: "ls"},
		codison.AssistantTurn{Content: "Listing."},
		codison.UserTurn{Content: "try again"},
	})

	require.Len(t, contents, 3)
	model := contents[1]
	require.Len(t, model.Parts, 2)
	assert.Equal(t, "Listing.", model.Parts[0].Text)
	assert.Equal(t, "c1", model.Parts[1].FunctionCall.ID)

	user := contents[2]
	require.Len(t, user.Parts, 2)
	assert.Equal(t, "c1", user.Parts[0].FunctionResponse.ID)
	assert.Equal(t, map[string]any{"output": provider.IncompleteToolOutput}, user.Parts[0].FunctionResponse.Response)
	assert.Equal(t, "try again", user.Parts[1].Text)
}

func TestConvertTools(t *testing.T) {
	tools := convertTools([]codison.ToolSpec{{
		Name:        "grep",
		Description: "Search files",
		Parameters: []byte(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "description": "regex"},
				"paths": {"type": "array", "items": {"type": "string"}},
				"mode": {"type": "string", "enum": ["fast", "full"]}
			},
			"required": ["pattern"]
		}`),
	}})
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)

	params := tools[0].FunctionDeclarations[0].Parameters
	assert.Equal(t, genai.TypeObject, params.Type)
	assert.Equal(t, []string{"pattern"}, params.Required)
	assert.Equal(t, "regex", params.Properties["pattern"].Description)
	assert.Equal(t, genai.TypeString, params.Properties["paths"].Items.Type)
	assert.Equal(t, []string{"fast", "full"}, params.Properties["mode"].Enum)
}

func serve(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), "test-key",
		WithBaseURL(srv.URL),
		WithRetry(retry.Disabled()),
	)
	require.NoError(t, err)
	return c
}

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "data: %s\r\n\r\n", c)
	}
	fmt.Fprint(w, b.String())
}

func collect(ch <-chan codison.StreamItem) ([]codison.ProviderEvent, error) {
	var events []codison.ProviderEvent
	for item := range ch {
		if item.Err != nil {
			return events, item.Err
		}
		events = append(events, item.Event)
	}
	return events, nil
}

func TestClient_Stream(t *testing.T) {
	t.Run("text and function call", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, ":streamGenerateContent")
			writeSSE(w,
				`{"candidates":[{"content":{"role":"model","parts":[{"text":"Let me "}]}}],"responseId":"resp-1"}`,
				`{"candidates":[{"content":{"role":"model","parts":[{"text":"look."},{"functionCall":{"name":"ls","args":{"path":"."}}}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":6},"responseId":"resp-1"}`,
			)
		})

		ch, err := c.Stream(context.Background(), codison.StreamRequest{
			Messages: []codison.Message{codison.UserTurn{Content: "ls"}},
		})
		require.NoError(t, err)
		events, err := collect(ch)
		require.NoError(t, err)

		assert.Equal(t, []codison.ProviderEvent{
			codison.Start{TurnID: "resp-1"},
			codison.PartialText{Delta: "Let me "},
			codison.PartialText{Delta: "look."},
			codison.ToolCall{Name: "ls", Args: map[string]any{"path": "."}},
			codison.FullText{
				Content: "Let me look.",
				Usage:   &codison.Usage{InputTokens: 4, OutputTokens: 6},
			},
		}, events)
	})

	t.Run("text after a function call keeps its place", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w,
				`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"id":"fc-1","name":"ls","args":{"path":"."}}},{"text":"Listing "}]}}],"responseId":"resp-2"}`,
				`{"candidates":[{"content":{"role":"model","parts":[{"text":"now."},{"functionCall":{"id":"fc-2","name":"read"}}]},"finishReason":"STOP"}],"responseId":"resp-2"}`,
			)
		})

		ch, err := c.Stream(context.Background(), codison.StreamRequest{
			Messages: []codison.Message{codison.UserTurn{Content: "ls"}},
		})
		require.NoError(t, err)
		events, err := collect(ch)
		require.NoError(t, err)

		assert.Equal(t, []codison.ProviderEvent{
			codison.Start{TurnID: "resp-2"},
			codison.ToolCall{CallID: "fc-1", Name: "ls", Args: map[string]any{"path": "."}},
			codison.PartialText{Delta: "Listing "},
			codison.PartialText{Delta: "now."},
			codison.ToolCall{CallID: "fc-2", Name: "read", Args: map[string]any{}},
			codison.FullText{Content: "Listing now."},
		}, events)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
		})

		_, err := c.Stream(context.Background(), codison.StreamRequest{
			Messages: []codison.Message{codison.UserTurn{Content: "x"}},
		})
		var be *BlockedError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "SAFETY", be.Reason)
	})

	t.Run("status errors are categorized", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`)
		})

		_, err := c.Stream(context.Background(), codison.StreamRequest{
			Messages: []codison.Message{codison.UserTurn{Content: "x"}},
		})
		require.Error(t, err)
		assert.True(t, codison.IsTransient(err))
		assert.Equal(t, http.StatusTooManyRequests, codison.StatusCodeOf(err))
	})
}

func TestFunctionResponse(t *testing.T) {
	assert.Equal(t, map[string]any{"output": "plain"}, functionResponse("plain"))
	assert.Equal(t, map[string]any{"output": "null"}, functionResponse("null"))
	assert.Equal(t, map[string]any{"ok": true}, functionResponse(`{"ok":true}`))
}
