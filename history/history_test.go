package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("preserves order", func(t *testing.T) {
		h := New()
		require.NoError(t, h.Add(ctx, codison.UserTurn{Content: "hi"}))
		require.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls"}))
		require.NoError(t, h.Add(ctx, codison.ToolCallResult{CallID: "c1", Name: "ls", Output: "a.go"}))
		require.NoError(t, h.Add(ctx, codison.AssistantTurn{Content: "done"}))

		msgs := h.Messages()
		require.Len(t, msgs, 4)
		assert.Equal(t, codison.KindUserTurn, msgs[0].Kind())
		assert.Equal(t, codison.KindToolCallRequest, msgs[1].Kind())
		assert.Equal(t, codison.KindToolCallResult, msgs[2].Kind())
		assert.Equal(t, codison.KindAssistantTurn, msgs[3].Kind())
	})

	t.Run("rejects orphan result", func(t *testing.T) {
		h := New()
		err := h.Add(ctx, codison.ToolCallResult{CallID: "missing", Output: "x"})
		assert.ErrorIs(t, err, ErrOrphanResult)
		assert.Equal(t, 0, h.Len())
	})

	t.Run("rejects duplicate request id", func(t *testing.T) {
		h := New()
		require.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls"}))
		err := h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "read"})
		assert.ErrorIs(t, err, ErrDuplicateCallID)
		assert.Equal(t, 1, h.Len())
	})

	t.Run("rejects empty call id", func(t *testing.T) {
		h := New()
		assert.ErrorIs(t, h.Add(ctx, codison.ToolCallRequest{Name: "ls"}), ErrEmptyCallID)
		assert.ErrorIs(t, h.Add(ctx, codison.ToolCallResult{Name: "ls"}), ErrEmptyCallID)
	})

	t.Run("rejects nil", func(t *testing.T) {
		assert.ErrorIs(t, New().Add(ctx, nil), ErrNilMessage)
	})
}

func TestHistory_MessagesIsSnapshot(t *testing.T) {
	ctx := context.Background()
	h := New()
	require.NoError(t, h.Add(ctx, codison.UserTurn{Content: "one"}))

	snapshot := h.Messages()
	require.NoError(t, h.Add(ctx, codison.AssistantTurn{Content: "two"}))

	assert.Len(t, snapshot, 1)
	assert.Len(t, h.Messages(), 2)
}

func TestHistory_Last(t *testing.T) {
	ctx := context.Background()
	h := New()
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, h.Add(ctx, codison.UserTurn{Content: s}))
	}

	assert.Nil(t, h.Last(0))
	assert.Equal(t, []codison.Message{codison.UserTurn{Content: "c"}}, h.Last(1))
	assert.Len(t, h.Last(10), 3)
}

func TestHistory_Pending(t *testing.T) {
	ctx := context.Background()
	h := New()
	require.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "a", Name: "ls"}))
	require.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "b", Name: "ls"}))
	require.NoError(t, h.Add(ctx, codison.ToolCallResult{CallID: "a", Name: "ls"}))

	assert.Equal(t, []string{"b"}, h.Pending())
}

func TestHistory_Clear(t *testing.T) {
	ctx := context.Background()
	h := New()
	require.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls"}))
	require.NoError(t, h.Clear(ctx))

	assert.Equal(t, 0, h.Len())
	assert.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls"}), "call ids are reusable after clear")
}

func TestHistory_Persistence(t *testing.T) {
	ctx := context.Background()

	t.Run("writes through and reloads", func(t *testing.T) {
		adapter := store.NewMemoryAdapter()
		h := New(WithAdapter(adapter), WithKey("s1"))
		require.NoError(t, h.Add(ctx, codison.UserTurn{Content: "hi"}))
		require.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls", Args: map[string]any{"path": "."}}))

		reloaded := New(WithAdapter(adapter), WithKey("s1"))
		require.NoError(t, reloaded.Load(ctx))
		assert.Equal(t, 2, reloaded.Len())
		require.NoError(t, reloaded.Add(ctx, codison.ToolCallResult{CallID: "c1", Name: "ls", Output: "ok"}))
		assert.ErrorIs(t, reloaded.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls"}), ErrDuplicateCallID)
	})

	t.Run("load missing key leaves empty", func(t *testing.T) {
		h := New(WithAdapter(store.NewMemoryAdapter()))
		require.NoError(t, h.Load(ctx))
		assert.Equal(t, 0, h.Len())
	})

	t.Run("clear deletes stored session", func(t *testing.T) {
		adapter := store.NewMemoryAdapter()
		h := New(WithAdapter(adapter))
		require.NoError(t, h.Add(ctx, codison.UserTurn{Content: "hi"}))
		require.NoError(t, h.Clear(ctx))

		_, ok, err := adapter.Get(ctx, DefaultKey)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("persist failure rolls back", func(t *testing.T) {
		adapter := &failingAdapter{MemoryAdapter: store.NewMemoryAdapter(), err: errors.New("disk full")}
		h := New(WithAdapter(adapter))

		err := h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls"})
		assert.ErrorContains(t, err, "disk full")
		assert.Equal(t, 0, h.Len())

		adapter.err = nil
		assert.NoError(t, h.Add(ctx, codison.ToolCallRequest{CallID: "c1", Name: "ls"}))
	})

	t.Run("corrupt data", func(t *testing.T) {
		adapter := store.NewMemoryAdapter()
		require.NoError(t, adapter.Set(ctx, DefaultKey, json.RawMessage(`{"not":"an array"}`)))
		h := New(WithAdapter(adapter))

		var serr *store.SerializationError
		assert.ErrorAs(t, h.Load(ctx), &serr)
	})
}

type failingAdapter struct {
	*store.MemoryAdapter
	err error
}

func (f *failingAdapter) Set(ctx context.Context, key string, value json.RawMessage) error {
	if f.err != nil {
		return f.err
	}
	return f.MemoryAdapter.Set(ctx, key, value)
}
