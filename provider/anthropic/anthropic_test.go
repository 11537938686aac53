package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
	"github.com/spetersoncode/codison/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMessages(t *testing.T) {
	msgs := convertMessages([]codison.Message{
		codison.UserTurn{Content: "list files"},
		codison.AssistantTurn{Content: "Looking."},
		codison.ToolCallRequest{CallID: "t1", Name: "ls", Args: map[string]any{"path": "."}},
		codison.ToolCallRequest{CallID: "t2", Name: "ls"},
		codison.ToolCallResult{CallID: "t1", Name: "ls", Output: "a.go"},
		codison.ToolCallResult{CallID: "t2", Name: "ls", Output: "b.go"},
		codison.UserTurn{Content: ""},
		codison.AssistantTurn{Content: "Done."},
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Content, 3)
	assert.Equal(t, "Looking.", msgs[1].Content[0].OfText.Text)
	require.NotNil(t, msgs[1].Content[1].OfToolUse)
	assert.Equal(t, "t1", msgs[1].Content[1].OfToolUse.ID)
	assert.Equal(t, map[string]any{}, msgs[1].Content[2].OfToolUse.Input)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	assert.Equal(t, "t2", msgs[2].Content[1].OfToolResult.ToolUseID)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
}

func TestConvertMessages_UnansweredToolUse(t *testing.T) {
	msgs := convertMessages([]codison.Message{
		codison.UserTurn{Content: "go"},
		codison.ToolCallRequest{CallID: "c1", Name: "ls"},
		codison.ToolCallRequest{CallID: "c2", Name: "ls"},
		codison.UserTurn{Content: "try again"},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Content, 2)

	user := msgs[2]
	assert.Equal(t, anthropic.MessageParamRoleUser, user.Role)
	require.Len(t, user.Content, 3)
	for i, id := range []string{"c1", "c2"} {
		result := user.Content[i].OfToolResult
		require.NotNil(t, result)
		assert.Equal(t, id, result.ToolUseID)
		require.Len(t, result.Content, 1)
		assert.Equal(t, provider.IncompleteToolOutput, result.Content[0].OfText.Text)
	}
	assert.Equal(t, "try again", user.Content[2].OfText.Text)
}

func TestConvertTools(t *testing.T) {
	tools := convertTools([]codison.ToolSpec{{
		Name:        "ls",
		Description: "List a directory",
		Parameters:  []byte(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	}})
	require.Len(t, tools, 1)
	tool := tools[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "ls", tool.Name)
	assert.Equal(t, []string{"path"}, tool.InputSchema.Required)
	assert.Equal(t, map[string]any{"path": map[string]any{"type": "string"}}, tool.InputSchema.Properties)
}

type sseEvent struct {
	name string
	data string
}

func writeSSE(w http.ResponseWriter, events ...sseEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", e.name, e.data)
	}
	fmt.Fprint(w, b.String())
}

func serve(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key",
		WithRetry(retry.Disabled()),
		WithRequestOptions(option.WithBaseURL(srv.URL)),
	)
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

const messageStart = `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":1}}}`

func TestClient_Stream(t *testing.T) {
	t.Run("text and tool use", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			writeSSE(w,
				sseEvent{"message_start", messageStart},
				sseEvent{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
				sseEvent{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me "}}`},
				sseEvent{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"look."}}`},
				sseEvent{"content_block_stop", `{"type":"content_block_stop","index":0}`},
				sseEvent{"content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"ls","input":{}}}`},
				sseEvent{"content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\": \".\"}"}}`},
				sseEvent{"content_block_stop", `{"type":"content_block_stop","index":1}`},
				sseEvent{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"input_tokens":10,"output_tokens":7}}`},
				sseEvent{"message_stop", `{"type":"message_stop"}`},
			)
		})

		ch, err := c.Stream(context.Background(), codison.StreamRequest{
			Messages: []codison.Message{codison.UserTurn{Content: "ls"}},
			Tools:    []codison.ToolSpec{{Name: "ls"}},
		})
		require.NoError(t, err)
		events, err := collect(ch)
		require.NoError(t, err)

		assert.Equal(t, []codison.ProviderEvent{
			codison.Start{TurnID: "msg_1"},
			codison.PartialText{Delta: "Let me "},
			codison.PartialText{Delta: "look."},
			codison.ToolStart{CallID: "toolu_1", Name: "ls"},
			codison.ToolEnd{CallID: "toolu_1"},
			codison.ToolCall{CallID: "toolu_1", Name: "ls", Args: map[string]any{"path": "."}},
			codison.FullText{
				Content: "Let me look.",
				Usage:   &codison.Usage{InputTokens: 10, OutputTokens: 7},
			},
		}, events)
	})

	t.Run("tool call is sent when its block stops", func(t *testing.T) {
		release := make(chan struct{})
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w,
				sseEvent{"message_start", messageStart},
				sseEvent{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"ls","input":{}}}`},
				sseEvent{"content_block_stop", `{"type":"content_block_stop","index":0}`},
			)
			w.(http.Flusher).Flush()
			<-release
			writeSSE(w, sseEvent{"message_stop", `{"type":"message_stop"}`})
		})
		defer close(release)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := c.Stream(ctx, codison.StreamRequest{})
		require.NoError(t, err)

		var events []codison.ProviderEvent
		for item := range ch {
			require.NoError(t, item.Err)
			events = append(events, item.Event)
			if _, ok := item.Event.(codison.ToolCall); ok {
				break
			}
		}
		assert.Equal(t, codison.ToolCall{CallID: "toolu_1", Name: "ls", Args: map[string]any{}}, events[len(events)-1])
	})

	t.Run("malformed stream", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w,
				sseEvent{"message_start", messageStart},
				sseEvent{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"x"}}`},
			)
		})

		ch, err := c.Stream(context.Background(), codison.StreamRequest{})
		require.NoError(t, err)
		_, err = collect(ch)
		assert.ErrorIs(t, err, codison.ErrMalformedOutput)
		assert.True(t, codison.IsPermanent(err))
	})

	t.Run("stream error", func(t *testing.T) {
		c := serve(t, func(w http.ResponseWriter, r *http.Request) {
			writeSSE(w,
				sseEvent{"message_start", messageStart},
				sseEvent{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
			)
		})

		ch, err := c.Stream(context.Background(), codison.StreamRequest{})
		require.NoError(t, err)
		_, err = collect(ch)
		assert.Error(t, err)
	})

	t.Run("status errors are categorized", func(t *testing.T) {
		tests := []struct {
			code  int
			check func(error) bool
		}{
			{http.StatusUnauthorized, codison.IsPermanent},
			{http.StatusNotFound, codison.IsUserInput},
			{http.StatusInternalServerError, codison.IsTransient},
		}
		for _, tt := range tests {
			t.Run(http.StatusText(tt.code), func(t *testing.T) {
				c := serve(t, func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tt.code)
					fmt.Fprint(w, `{"type":"error","error":{"type":"api_error","message":"nope"}}`)
				})
				_, err := c.Stream(context.Background(), codison.StreamRequest{})
				require.Error(t, err)
				assert.True(t, tt.check(err))
			})
		}
	})
}

func TestClient_Defaults(t *testing.T) {
	c := New("k", WithMaxTokens(0))
	assert.Equal(t, "anthropic", c.Name())
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
}
