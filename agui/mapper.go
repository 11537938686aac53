package agui

import (
	"fmt"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/spetersoncode/codison/event"
)

// Mapper converts agent events to AG-UI events.
//
// AG-UI brackets content in start and end events, so the Mapper tracks the
// open run, step and text message. A Mapper follows any number of
// consecutive runs on one thread. It is not safe for concurrent use.
type Mapper struct {
	threadID string

	runID     string
	step      int
	messageID string
	// streamed is set once deltas arrived for the text span being built.
	streamed bool

	out []events.Event
}

var _ event.Handler = (*Mapper)(nil)

// NewMapper creates a Mapper for threadID. An empty threadID is generated.
func NewMapper(threadID string) *Mapper {
	if threadID == "" {
		threadID = events.GenerateThreadID()
	}
	return &Mapper{threadID: threadID}
}

// ThreadID returns the thread ID for this mapper.
func (m *Mapper) ThreadID() string {
	return m.threadID
}

// RunID returns the ID of the open run, or "" between runs.
func (m *Mapper) RunID() string {
	return m.runID
}

// Map converts one agent event. The first event of a run is preceded by
// RUN_STARTED and a terminal event closes everything still open.
func (m *Mapper) Map(e event.Event) []events.Event {
	m.out = nil
	meta := e.Metadata()

	if m.runID == "" {
		m.runID = meta.RunID
		if m.runID == "" {
			m.runID = events.GenerateRunID()
		}
		m.emit(events.NewRunStartedEvent(m.threadID, m.runID))
	}
	if meta.Step > 0 && meta.Step != m.step {
		m.closeMessage()
		m.streamed = false
		m.closeStep()
		m.step = meta.Step
		m.emit(events.NewStepStartedEvent(stepName(m.step)))
	}

	e.Accept(m)
	return m.out
}

// MapStream converts every event from in. The returned channel is closed
// when in is.
func (m *Mapper) MapStream(in <-chan event.Event) <-chan events.Event {
	out := make(chan events.Event)
	go func() {
		defer close(out)
		for e := range in {
			for _, ev := range m.Map(e) {
				out <- ev
			}
		}
	}()
	return out
}

func (m *Mapper) OnPartialText(e event.PartialText) {
	if e.Delta == "" {
		return
	}
	m.openMessage()
	m.streamed = true
	m.emit(events.NewTextMessageContentEvent(m.messageID, e.Delta))
}

// OnFullText closes the streamed message. Text that arrived without deltas
// is sent as a complete message. A tool call may have closed the message
// already, in which case its content was streamed and is not repeated.
func (m *Mapper) OnFullText(e event.FullText) {
	if !m.streamed && e.Content != "" {
		m.openMessage()
		m.emit(events.NewTextMessageContentEvent(m.messageID, e.Content))
	}
	m.streamed = false
	m.closeMessage()
}

func (m *Mapper) OnToolCall(e event.ToolCall) {
	m.closeMessage()
	m.emit(events.NewToolCallStartEvent(e.CallID, e.Name))
	m.emit(events.NewToolCallArgsEvent(e.CallID, argsJSON(e.Args)))
	m.emit(events.NewToolCallEndEvent(e.CallID))
}

func (m *Mapper) OnToolCallOutput(e event.ToolCallOutput) {
	m.emit(events.NewToolCallResultEvent(events.GenerateMessageID(), e.CallID, e.Output))
}

func (m *Mapper) OnError(e event.Error) {
	m.finish()
	m.emit(events.NewRunErrorEvent(e.Message()))
}

func (m *Mapper) OnDone(event.Done) {
	runID := m.runID
	m.finish()
	m.emit(events.NewRunFinishedEvent(m.threadID, runID))
}

func (m *Mapper) finish() {
	m.closeMessage()
	m.streamed = false
	m.closeStep()
	m.runID = ""
}

func (m *Mapper) openMessage() {
	if m.messageID != "" {
		return
	}
	m.messageID = events.GenerateMessageID()
	m.emit(events.NewTextMessageStartEvent(m.messageID, events.WithRole(RoleAssistant)))
}

func (m *Mapper) closeMessage() {
	if m.messageID == "" {
		return
	}
	m.emit(events.NewTextMessageEndEvent(m.messageID))
	m.messageID = ""
}

func (m *Mapper) closeStep() {
	if m.step == 0 {
		return
	}
	m.emit(events.NewStepFinishedEvent(stepName(m.step)))
	m.step = 0
}

func (m *Mapper) emit(ev events.Event) {
	m.out = append(m.out, ev)
}

func stepName(step int) string {
	return fmt.Sprintf("step %d", step)
}
