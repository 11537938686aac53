package agent

import (
	"context"

	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/event"
	"github.com/spetersoncode/codison/tool"
	"golang.org/x/sync/errgroup"
)

type toolOutcome struct {
	call   codison.ToolCallRequest
	output string
}

// resolve checks every pending call against the registry before anything
// runs, so an unknown tool fails the step with no side effects.
func (a *Agent) resolve(calls []codison.ToolCallRequest) error {
	for _, call := range calls {
		if !a.registry.Has(call.Name) {
			return &tool.ErrToolNotFound{Name: call.Name}
		}
	}
	return nil
}

// dispatch launches every call before awaiting any of them. Outputs are
// reported in completion order.
func (a *Agent) dispatch(ctx context.Context, r *run, step int, calls []codison.ToolCallRequest) error {
	r.logger.Debug().Int("step", step).Int("calls", len(calls)).Msg("dispatching tools")

	g, gctx := errgroup.WithContext(ctx)
	if a.opts.MaxConcurrentTools > 0 {
		g.SetLimit(a.opts.MaxConcurrentTools)
	}

	completed := make(chan toolOutcome, len(calls))
	for _, call := range calls {
		g.Go(func() error {
			out, err := a.execute(gctx, call)
			if err != nil {
				r.logger.Warn().Err(err).Str("tool", call.Name).Str("call_id", call.CallID).Msg("tool failed")
				if !a.opts.IsolateToolFailures {
					return err
				}
				out = "Error: " + err.Error()
			}
			completed <- toolOutcome{call: call, output: out}
			return nil
		})
	}

	waited := make(chan error, 1)
	go func() {
		waited <- g.Wait()
		close(completed)
	}()

	var outcomes []toolOutcome
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o, ok := <-completed:
			if !ok {
				if err := <-waited; err != nil {
					return &StepError{Step: step, Stage: StageTool, Err: err}
				}
				for _, out := range outcomes {
					if err := a.record(ctx, r, step, out); err != nil {
						return err
					}
				}
				return nil
			}
			if a.opts.IsolateToolFailures {
				if err := a.record(ctx, r, step, o); err != nil {
					return err
				}
				continue
			}
			outcomes = append(outcomes, o)
		}
	}
}

func (a *Agent) execute(ctx context.Context, call codison.ToolCallRequest) (string, error) {
	if a.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.HandlerTimeout)
		defer cancel()
	}
	return a.registry.Execute(ctx, call)
}

func (a *Agent) record(ctx context.Context, r *run, step int, o toolOutcome) error {
	err := r.emit(event.ToolCallOutput{
		Meta:   r.meta(step),
		CallID: o.call.CallID,
		Name:   o.call.Name,
		Output: o.output,
	})
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	result := codison.ToolCallResult{CallID: o.call.CallID, Name: o.call.Name, Output: o.output}
	if err := a.history.Add(ctx, result); err != nil {
		return &StepError{Step: step, Stage: StageHistory, Err: err}
	}
	return nil
}
