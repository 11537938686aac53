package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/event"
	"github.com/spetersoncode/codison/history"
	"github.com/spetersoncode/codison/tool"
)

// Agent orchestrates the loop between a provider and a tool registry.
//
// An Agent may be shared, but runs that share its History must not overlap.
type Agent struct {
	provider codison.Provider
	history  *history.History
	registry *tool.Registry
	opts     *Options
}

// New creates an Agent. A nil history or registry is replaced by an empty one.
func New(provider codison.Provider, hist *history.History, registry *tool.Registry, opts ...Option) *Agent {
	if hist == nil {
		hist = history.New()
	}
	if registry == nil {
		registry = tool.NewRegistry()
	}
	return &Agent{
		provider: provider,
		history:  hist,
		registry: registry,
		opts:     ApplyOptions(opts...),
	}
}

// History returns the conversation ledger the agent appends to.
func (a *Agent) History() *history.History { return a.history }

// Registry returns the agent's tools.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// Provider returns the model provider.
func (a *Agent) Provider() codison.Provider { return a.provider }

// Result is the collected outcome of a run.
type Result struct {
	RunID string
	// Text is the content of the last FullText event.
	Text  string
	Steps int
	Usage codison.Usage
	// Events holds every event in emission order.
	Events []event.Event
}

// Run executes a run and blocks until it terminates.
// The returned error is the run's Error event, if any.
func (a *Agent) Run(ctx context.Context, prompt string) (*Result, error) {
	events, err := a.RunStream(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	runErr := ErrRunCancelled
	for e := range events {
		result.Events = append(result.Events, e)
		result.RunID = e.Metadata().RunID
		e.Accept(event.HandlerFuncs{
			FullText: func(e event.FullText) {
				result.Text = e.Content
			},
			Error: func(e event.Error) {
				result.Steps = e.Step
				runErr = e.Err
			},
			Done: func(e event.Done) {
				result.Steps = e.Steps
				result.Usage = e.Usage
				runErr = nil
			},
		})
	}
	return result, runErr
}

// RunStream appends prompt to the history and starts a run.
//
// The returned channel yields the run's events and is closed after the
// terminal event. Cancelling ctx detaches the consumer: the provider stream
// is released, nothing further is appended to the history and the channel
// is closed without a terminal event.
func (a *Agent) RunStream(ctx context.Context, prompt string) (<-chan event.Event, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.history.Add(ctx, codison.UserTurn{Content: prompt}); err != nil {
		return nil, fmt.Errorf("agent: append prompt: %w", err)
	}

	r := &run{
		id:       a.opts.NewRunID(),
		out:      event.NewChannel(),
		consumer: ctx,
	}
	r.logger = a.opts.Logger.With().Str("run_id", r.id).Logger()

	go a.runLoop(ctx, r)
	return r.out, nil
}

func (a *Agent) runLoop(ctx context.Context, r *run) {
	defer close(r.out)

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	r.logger.Debug().
		Str("provider", a.provider.Name()).
		Str("model", a.provider.Model()).
		Msg("run started")

	for step := 1; ; step++ {
		if a.opts.MaxSteps > 0 && step > a.opts.MaxSteps {
			r.fail(step-1, ErrMaxStepsReached)
			return
		}

		done, err := a.executeStep(ctx, r, step)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && r.consumer.Err() == nil {
				err = fmt.Errorf("%w: %w", ErrTimeout, err)
			}
			r.fail(step, err)
			return
		}
		if done {
			r.logger.Debug().Int("steps", step).Msg("run done")
			_ = r.emit(event.Done{Meta: r.meta(step), Steps: step, Usage: r.usage})
			return
		}
	}
}

// executeStep runs one provider turn and, if the model requested tools,
// executes them. It reports whether the run is complete.
func (a *Agent) executeStep(ctx context.Context, r *run, step int) (bool, error) {
	r.logger.Debug().Int("step", step).Int("messages", a.history.Len()).Msg("step started")

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	items, err := a.provider.Stream(streamCtx, codison.StreamRequest{
		Messages:       a.history.Messages(),
		PreviousTurnID: r.turnID,
		Tools:          a.registry.Specs(),
	})
	if err != nil {
		return false, &StepError{Step: step, Stage: StageProvider, Err: err}
	}

	t := newTranslator(ctx, r, a.history, step)
	if err := consume(streamCtx, items, t); err != nil {
		return false, err
	}
	// A provider may close its stream on cancellation without reporting it.
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := t.finish(); err != nil {
		return false, err
	}

	if len(t.pending) == 0 {
		return true, nil
	}
	if err := a.resolve(t.pending); err != nil {
		return false, &StepError{Step: step, Stage: StageTool, Err: err}
	}
	return false, a.dispatch(ctx, r, step, t.pending)
}

// consume forwards provider events in arrival order until the stream ends.
func consume(ctx context.Context, items <-chan codison.StreamItem, t *translator) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				return nil
			}
			if item.Err != nil {
				return &StepError{Step: t.step, Stage: StageProvider, Err: item.Err}
			}
			if item.Event == nil {
				continue
			}
			if err := item.Event.Dispatch(t); err != nil {
				return err
			}
		}
	}
}

// run is the state of one RunStream invocation.
type run struct {
	id  string
	out chan event.Event
	// consumer is the caller's context. Events are delivered only while it
	// is live.
	consumer context.Context
	logger   zerolog.Logger

	turnID string
	usage  codison.Usage
}

func (r *run) meta(step int) event.Meta {
	return event.Meta{RunID: r.id, Step: step}
}

func (r *run) emit(e event.Event) error {
	if !event.Emit(r.consumer, r.out, e) {
		return errDetached
	}
	return nil
}

func (r *run) addUsage(u *codison.Usage) {
	if u != nil {
		r.usage = r.usage.Add(*u)
	}
}

func (r *run) fail(step int, err error) {
	if errors.Is(err, errDetached) || r.consumer.Err() != nil {
		r.logger.Debug().Err(err).Int("step", step).Msg("run detached")
		return
	}
	r.logger.Error().Err(err).Int("step", step).Msg("run failed")
	_ = r.emit(event.Error{Meta: r.meta(step), Err: err})
}
