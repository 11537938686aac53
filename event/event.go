// Package event defines the agent's output alphabet. Every run produces a
// sequence of events that ends with exactly one terminal event, either Done
// or Error.
package event

import (
	"context"
	"time"

	"github.com/spetersoncode/codison"
)

// Kind identifies the variant of an event.
type Kind string

const (
	KindPartialText    Kind = "partial_text"
	KindFullText       Kind = "full_text"
	KindToolCall       Kind = "tool_call"
	KindToolCallOutput Kind = "tool_call_output"
	KindError          Kind = "error"
	KindDone           Kind = "done"
)

// Meta is attached to every event.
type Meta struct {
	// RunID identifies the run that produced the event.
	RunID string
	// Step is the 1-indexed loop iteration.
	Step int
	// Timestamp is set when the event is emitted.
	Timestamp time.Time
}

// Event is one element of a run's output.
// The set of variants is closed; use Accept with a Handler to process them.
type Event interface {
	Kind() Kind
	Metadata() Meta
	// Terminal reports whether no further events follow this one.
	Terminal() bool
	Accept(h Handler)
	stamp(t time.Time) Event
}

// Handler processes every event variant.
type Handler interface {
	OnPartialText(PartialText)
	OnFullText(FullText)
	OnToolCall(ToolCall)
	OnToolCallOutput(ToolCallOutput)
	OnError(Error)
	OnDone(Done)
}

// PartialText is a streamed text delta.
type PartialText struct {
	Meta
	Delta string
}

// FullText is the complete assistant text for one turn.
type FullText struct {
	Meta
	Content string
	Usage   *codison.Usage
}

// ToolCall announces a tool invocation requested by the model.
type ToolCall struct {
	Meta
	CallID string
	Name   string
	Args   map[string]any
	Usage  *codison.Usage
}

// ToolCallOutput carries the result of an executed tool call.
type ToolCallOutput struct {
	Meta
	CallID string
	Name   string
	Output string
}

// Error terminates a run unsuccessfully.
type Error struct {
	Meta
	Err error
}

// Message returns the user-visible error text.
func (e Error) Message() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

// Done terminates a run successfully.
type Done struct {
	Meta
	// Steps is the number of provider turns taken.
	Steps int
	// Usage is the accumulated token usage of the run.
	Usage codison.Usage
}

func (e Meta) Metadata() Meta { return e }

func (PartialText) Kind() Kind    { return KindPartialText }
func (FullText) Kind() Kind       { return KindFullText }
func (ToolCall) Kind() Kind       { return KindToolCall }
func (ToolCallOutput) Kind() Kind { return KindToolCallOutput }
func (Error) Kind() Kind          { return KindError }
func (Done) Kind() Kind           { return KindDone }

func (PartialText) Terminal() bool    { return false }
func (FullText) Terminal() bool       { return false }
func (ToolCall) Terminal() bool       { return false }
func (ToolCallOutput) Terminal() bool { return false }
func (Error) Terminal() bool          { return true }
func (Done) Terminal() bool           { return true }

func (e PartialText) Accept(h Handler)    { h.OnPartialText(e) }
func (e FullText) Accept(h Handler)       { h.OnFullText(e) }
func (e ToolCall) Accept(h Handler)       { h.OnToolCall(e) }
func (e ToolCallOutput) Accept(h Handler) { h.OnToolCallOutput(e) }
func (e Error) Accept(h Handler)          { h.OnError(e) }
func (e Done) Accept(h Handler)           { h.OnDone(e) }

func (e PartialText) stamp(t time.Time) Event    { e.Timestamp = t; return e }
func (e FullText) stamp(t time.Time) Event       { e.Timestamp = t; return e }
func (e ToolCall) stamp(t time.Time) Event       { e.Timestamp = t; return e }
func (e ToolCallOutput) stamp(t time.Time) Event { e.Timestamp = t; return e }
func (e Error) stamp(t time.Time) Event          { e.Timestamp = t; return e }
func (e Done) stamp(t time.Time) Event           { e.Timestamp = t; return e }

// Emit timestamps e and sends it to ch. It blocks until the event is
// delivered or ctx is done, and reports whether the event was delivered.
func Emit(ctx context.Context, ch chan<- Event, e Event) bool {
	e = e.stamp(time.Now())
	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewChannel creates a buffered event channel with standard capacity.
func NewChannel() chan Event {
	return make(chan Event, 100)
}
