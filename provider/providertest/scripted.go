// Package providertest provides a scripted codison.Provider for tests.
package providertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spetersoncode/codison"
)

// ErrScriptExhausted is returned by Stream once every turn has been used.
var ErrScriptExhausted = errors.New("providertest: script exhausted")

// Turn scripts one call to Stream.
type Turn struct {
	// Events are sent in order.
	Events []codison.ProviderEvent
	// Err, if set, is sent as the terminal item after Events.
	Err error
	// StartErr, if set, is returned by Stream itself.
	StartErr error
	// Delay is waited before each event.
	Delay time.Duration
	// Hold keeps the stream open after Events until the context is cancelled.
	Hold bool
}

// Call records one invocation of Stream.
type Call struct {
	Request codison.StreamRequest
	At      time.Time
}

// Scripted replays Turns in order, one per Stream call.
type Scripted struct {
	mu        sync.Mutex
	turns     []Turn
	calls     []Call
	cancelled int
}

var _ codison.Provider = (*Scripted)(nil)

// New creates a Scripted provider.
func New(turns ...Turn) *Scripted {
	return &Scripted{turns: turns}
}

func (s *Scripted) Name() string  { return "scripted" }
func (s *Scripted) Model() string { return "scripted-1" }

// Stream implements codison.Provider.
func (s *Scripted) Stream(ctx context.Context, req codison.StreamRequest) (<-chan codison.StreamItem, error) {
	s.mu.Lock()
	idx := len(s.calls)
	s.calls = append(s.calls, Call{Request: req, At: time.Now()})
	if idx >= len(s.turns) {
		s.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	turn := s.turns[idx]
	s.mu.Unlock()

	if turn.StartErr != nil {
		return nil, turn.StartErr
	}

	ch := make(chan codison.StreamItem)
	go func() {
		defer close(ch)

		send := func(item codison.StreamItem) bool {
			select {
			case ch <- item:
				return true
			case <-ctx.Done():
				s.markCancelled()
				return false
			}
		}

		for _, ev := range turn.Events {
			if turn.Delay > 0 {
				select {
				case <-time.After(turn.Delay):
				case <-ctx.Done():
					s.markCancelled()
					return
				}
			}
			if !send(codison.StreamItem{Event: ev}) {
				return
			}
		}
		if turn.Err != nil {
			send(codison.StreamItem{Err: turn.Err})
			return
		}
		if turn.Hold {
			<-ctx.Done()
			s.markCancelled()
		}
	}()
	return ch, nil
}

func (s *Scripted) markCancelled() {
	s.mu.Lock()
	s.cancelled++
	s.mu.Unlock()
}

// Calls returns every recorded Stream invocation.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of Stream invocations.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Cancelled returns how many streams observed context cancellation.
func (s *Scripted) Cancelled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Text scripts a plain answer. Each delta becomes a PartialText; the
// FullText carries the concatenation.
func Text(deltas ...string) Turn {
	var full string
	events := make([]codison.ProviderEvent, 0, len(deltas)+1)
	for _, d := range deltas {
		full += d
		events = append(events, codison.PartialText{Delta: d})
	}
	events = append(events, codison.FullText{Content: full})
	return Turn{Events: events}
}

// Tools scripts a turn that only requests tool calls.
func Tools(calls ...codison.ToolCall) Turn {
	events := make([]codison.ProviderEvent, 0, len(calls))
	for _, c := range calls {
		events = append(events, c)
	}
	return Turn{Events: events}
}

// ToolCall builds a ToolCall event.
func ToolCall(id, name string, args map[string]any) codison.ToolCall {
	return codison.ToolCall{CallID: id, Name: name, Args: args}
}
