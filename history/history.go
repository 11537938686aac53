// Package history provides the append-only conversation ledger shared by the
// steps of a run.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/store"
)

// DefaultKey is the session key used when none is configured.
const DefaultKey = "default"

var (
	// ErrOrphanResult is returned when a tool result has no preceding request.
	ErrOrphanResult = errors.New("history: tool result without matching request")

	// ErrDuplicateCallID is returned when a request reuses a call id.
	ErrDuplicateCallID = errors.New("history: duplicate call id")

	// ErrEmptyCallID is returned when a tool message has no call id.
	ErrEmptyCallID = errors.New("history: empty call id")

	// ErrNilMessage is returned when Add is called with a nil message.
	ErrNilMessage = errors.New("history: nil message")
)

// History is an ordered, append-only list of messages for one session.
// Entries are never mutated or removed except by Clear.
type History struct {
	mu       sync.RWMutex
	messages []codison.Message
	calls    map[string]bool // call id -> result recorded
	adapter  store.Adapter
	key      string
	logger   zerolog.Logger
}

// Option configures a History.
type Option func(*History)

// WithAdapter writes every mutation through to adapter.
func WithAdapter(a store.Adapter) Option {
	return func(h *History) { h.adapter = a }
}

// WithKey sets the session key used with the adapter.
func WithKey(key string) Option {
	return func(h *History) { h.key = key }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *History) { h.logger = l }
}

// New creates an empty History.
func New(opts ...Option) *History {
	h := &History{
		calls:  make(map[string]bool),
		key:    DefaultKey,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add appends msg. Tool call results must reference an earlier request with
// the same call id, and each request call id may appear only once.
// When an adapter is configured the append is persisted before Add returns;
// if persisting fails the append is undone.
func (h *History) Add(ctx context.Context, msg codison.Message) error {
	if msg == nil {
		return ErrNilMessage
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkLocked(msg); err != nil {
		return err
	}

	h.messages = append(h.messages, msg)
	h.trackLocked(msg)

	if err := h.persistLocked(ctx); err != nil {
		h.messages = h.messages[:len(h.messages)-1]
		h.untrackLocked(msg)
		return err
	}

	h.logger.Debug().
		Str("kind", string(msg.Kind())).
		Int("len", len(h.messages)).
		Msg("history append")
	return nil
}

func (h *History) checkLocked(msg codison.Message) error {
	switch m := msg.(type) {
	case codison.ToolCallRequest:
		if m.CallID == "" {
			return ErrEmptyCallID
		}
		if _, exists := h.calls[m.CallID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCallID, m.CallID)
		}
	case codison.ToolCallResult:
		if m.CallID == "" {
			return ErrEmptyCallID
		}
		if _, exists := h.calls[m.CallID]; !exists {
			return fmt.Errorf("%w: %s", ErrOrphanResult, m.CallID)
		}
	}
	return nil
}

func (h *History) trackLocked(msg codison.Message) {
	switch m := msg.(type) {
	case codison.ToolCallRequest:
		h.calls[m.CallID] = false
	case codison.ToolCallResult:
		h.calls[m.CallID] = true
	}
}

func (h *History) untrackLocked(msg codison.Message) {
	switch m := msg.(type) {
	case codison.ToolCallRequest:
		delete(h.calls, m.CallID)
	case codison.ToolCallResult:
		h.calls[m.CallID] = false
	}
}

func (h *History) persistLocked(ctx context.Context) error {
	if h.adapter == nil {
		return nil
	}
	data, err := codison.MarshalMessages(h.messages)
	if err != nil {
		return &store.SerializationError{Key: h.key, Err: err}
	}
	if err := h.adapter.Set(ctx, h.key, data); err != nil {
		return fmt.Errorf("history: persist: %w", err)
	}
	return nil
}

// Messages returns a copy of the ledger as of the call.
func (h *History) Messages() []codison.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]codison.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Last returns up to n of the most recent messages.
func (h *History) Last(n int) []codison.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(h.messages) {
		n = len(h.messages)
	}
	out := make([]codison.Message, n)
	copy(out, h.messages[len(h.messages)-n:])
	return out
}

// Pending returns the call ids of requests that have no result yet, in
// request order.
func (h *History) Pending() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for _, m := range h.messages {
		if req, ok := m.(codison.ToolCallRequest); ok && !h.calls[req.CallID] {
			ids = append(ids, req.CallID)
		}
	}
	return ids
}

// Clear removes every message for the session.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.adapter != nil {
		if err := h.adapter.Delete(ctx, h.key); err != nil {
			return fmt.Errorf("history: clear: %w", err)
		}
	}
	h.messages = nil
	h.calls = make(map[string]bool)
	h.logger.Debug().Msg("history cleared")
	return nil
}

// Load replaces the in-memory ledger with the persisted one. It is a no-op
// without an adapter and leaves the ledger empty if nothing was stored.
func (h *History) Load(ctx context.Context) error {
	if h.adapter == nil {
		return nil
	}

	data, ok, err := h.adapter.Get(ctx, h.key)
	if err != nil {
		return fmt.Errorf("history: load: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = nil
	h.calls = make(map[string]bool)
	if !ok {
		return nil
	}

	msgs, err := codison.UnmarshalMessages(data)
	if err != nil {
		return &store.SerializationError{Key: h.key, Err: err}
	}
	for _, m := range msgs {
		if err := h.checkLocked(m); err != nil {
			h.messages = nil
			h.calls = make(map[string]bool)
			return fmt.Errorf("history: load: %w", err)
		}
		h.messages = append(h.messages, m)
		h.trackLocked(m)
	}
	h.logger.Debug().Int("len", len(h.messages)).Str("key", h.key).Msg("history loaded")
	return nil
}
