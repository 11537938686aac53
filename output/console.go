// Package output renders agent events for people and scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spetersoncode/codison/event"
)

// Console writes streamed text and tool requests to out and errors to errOut.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

var _ event.Handler = (*Console)(nil)

// NewConsole creates a Console.
func NewConsole(out, errOut io.Writer) *Console {
	return &Console{out: out, errOut: errOut}
}

func (c *Console) OnPartialText(e event.PartialText) {
	c.write(c.out, e.Delta)
}

// OnFullText is a no-op: the text was already streamed as deltas.
func (c *Console) OnFullText(event.FullText) {}

func (c *Console) OnToolCall(e event.ToolCall) {
	args, err := json.Marshal(e.Args)
	if err != nil {
		args = []byte("{}")
	}
	c.write(c.out, fmt.Sprintf("\n[Tool Requested: %s] %s\n", e.Name, args))
}

func (c *Console) OnToolCallOutput(event.ToolCallOutput) {}

func (c *Console) OnError(e event.Error) {
	c.write(c.errOut, fmt.Sprintf("\n[ERROR]: %s\n\n", e.Message()))
}

func (c *Console) OnDone(event.Done) {
	c.write(c.out, "\n")
}

func (c *Console) write(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(w, s)
}

// Follow renders events until the channel closes. The returned channel
// receives a value after each terminal event and is closed when events is.
func (c *Console) Follow(events <-chan event.Event) <-chan struct{} {
	turns := make(chan struct{}, 1)
	go func() {
		defer close(turns)
		for e := range events {
			e.Accept(c)
			if e.Terminal() {
				turns <- struct{}{}
			}
		}
	}()
	return turns
}
