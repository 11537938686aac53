package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/event"
	"github.com/spetersoncode/codison/history"
)

// translator maps one provider turn onto agent events. It implements
// codison.ProviderHandler, so every provider event variant must be handled
// here.
type translator struct {
	ctx  context.Context
	run  *run
	hist *history.History
	step int

	// text buffers deltas of the current span until its FullText arrives.
	text strings.Builder
	// usage holds a standalone report waiting for the next terminal event.
	usage *codison.Usage

	pending []codison.ToolCallRequest
}

var _ codison.ProviderHandler = (*translator)(nil)

func newTranslator(ctx context.Context, r *run, hist *history.History, step int) *translator {
	return &translator{ctx: ctx, run: r, hist: hist, step: step}
}

func (t *translator) meta() event.Meta {
	return t.run.meta(t.step)
}

func (t *translator) OnStart(e codison.Start) error {
	if e.TurnID != "" {
		t.run.turnID = e.TurnID
	}
	return nil
}

func (t *translator) OnPartialText(e codison.PartialText) error {
	if e.Delta == "" {
		return nil
	}
	t.text.WriteString(e.Delta)
	return t.run.emit(event.PartialText{Meta: t.meta(), Delta: e.Delta})
}

func (t *translator) OnFullText(e codison.FullText) error {
	t.text.Reset()
	usage := t.takeUsage(e.Usage)
	if e.Content == "" {
		t.usage = usage
		return nil
	}

	if err := t.ctx.Err(); err != nil {
		return err
	}
	if err := t.hist.Add(t.ctx, codison.AssistantTurn{Content: e.Content}); err != nil {
		return &StepError{Step: t.step, Stage: StageHistory, Err: err}
	}

	t.run.addUsage(usage)
	return t.run.emit(event.FullText{Meta: t.meta(), Content: e.Content, Usage: usage})
}

func (t *translator) OnToolCall(e codison.ToolCall) error {
	if e.Name == "" {
		return &StepError{
			Step:  t.step,
			Stage: StageProvider,
			Err:   codison.NewMalformedOutputError("tool call without a name", nil),
		}
	}

	callID := e.CallID
	if callID == "" {
		callID = "call_" + uuid.NewString()
	}
	args := e.Args
	if args == nil {
		args = map[string]any{}
	}
	usage := t.takeUsage(e.Usage)
	t.run.addUsage(usage)

	err := t.run.emit(event.ToolCall{
		Meta:   t.meta(),
		CallID: callID,
		Name:   e.Name,
		Args:   args,
		Usage:  usage,
	})
	if err != nil {
		return err
	}

	if err := t.ctx.Err(); err != nil {
		return err
	}
	req := codison.ToolCallRequest{CallID: callID, Name: e.Name, Args: args}
	if err := t.hist.Add(t.ctx, req); err != nil {
		return &StepError{Step: t.step, Stage: StageHistory, Err: err}
	}
	t.pending = append(t.pending, req)
	return nil
}

func (t *translator) OnToolStart(e codison.ToolStart) error {
	t.run.logger.Trace().Str("call_id", e.CallID).Str("tool", e.Name).Msg("tool span start")
	return nil
}

func (t *translator) OnToolEnd(e codison.ToolEnd) error {
	t.run.logger.Trace().Str("call_id", e.CallID).Msg("tool span end")
	return nil
}

func (t *translator) OnUsage(e codison.UsageReport) error {
	t.usage = mergeUsage(t.usage, &e.Usage)
	return nil
}

// finish closes the turn. Deltas that never received a FullText are
// committed as one, and unattached usage is still counted toward the run.
func (t *translator) finish() error {
	if t.text.Len() > 0 {
		if err := t.OnFullText(codison.FullText{Content: t.text.String()}); err != nil {
			return err
		}
	}
	if t.usage != nil {
		t.run.addUsage(t.usage)
		t.usage = nil
	}
	return nil
}

func (t *translator) takeUsage(u *codison.Usage) *codison.Usage {
	merged := mergeUsage(t.usage, u)
	t.usage = nil
	return merged
}

func mergeUsage(a, b *codison.Usage) *codison.Usage {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		u := *b
		return &u
	case b == nil:
		u := *a
		return &u
	}
	u := a.Add(*b)
	return &u
}
