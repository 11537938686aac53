package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors for agent termination conditions.
var (
	// ErrMaxStepsReached indicates the agent hit the step limit.
	ErrMaxStepsReached = errors.New("agent: maximum steps reached")

	// ErrTimeout indicates the overall run timeout was exceeded.
	ErrTimeout = errors.New("agent: timeout exceeded")

	// ErrRunCancelled indicates the run's output ended without a terminal
	// event because its context was cancelled.
	ErrRunCancelled = errors.New("agent: run cancelled")

	// ErrEmptyPrompt is returned by RunStream for a blank prompt.
	ErrEmptyPrompt = errors.New("agent: prompt is empty")
)

// Stage identifies the part of a step that failed.
type Stage string

const (
	StageProvider Stage = "provider"
	StageTool     Stage = "tool"
	StageHistory  Stage = "history"
)

// StepError reports a failure within one loop iteration.
type StepError struct {
	Step  int
	Stage Stage
	Err   error
}

// Error returns a formatted error message including the step and stage.
func (e *StepError) Error() string {
	return fmt.Sprintf("agent: step %d %s: %v", e.Step, e.Stage, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *StepError) Unwrap() error {
	return e.Err
}

// errDetached is returned internally once the consumer stops receiving.
// Nothing is emitted after it.
var errDetached = errors.New("agent: consumer detached")
