package agent

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Options configures agent execution.
type Options struct {
	// Logger receives step and dispatch diagnostics.
	Logger zerolog.Logger

	// MaxSteps limits provider turns per run. Zero means unlimited, so the
	// run ends only when the model stops requesting tools.
	MaxSteps int

	// Timeout is the overall timeout for a run. Zero means no timeout.
	Timeout time.Duration

	// HandlerTimeout is the timeout for each tool call. Zero means no timeout.
	HandlerTimeout time.Duration

	// IsolateToolFailures reports a failing tool's error as its output
	// instead of failing the whole batch.
	IsolateToolFailures bool

	// MaxConcurrentTools caps the number of tool calls running at once
	// within a step. Zero means every call in the step runs concurrently.
	MaxConcurrentTools int

	// NewRunID generates run identifiers.
	NewRunID func() string
}

// Option is a functional option for agent configuration.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMaxSteps sets the maximum number of provider turns per run.
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithTimeout sets the overall run timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithHandlerTimeout sets the timeout for individual tool calls.
func WithHandlerTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.HandlerTimeout = d
	}
}

// WithToolFailureIsolation controls whether a failing tool call fails the
// run. When enabled the error text becomes the call's output and the
// remaining calls of the batch are reported normally.
func WithToolFailureIsolation(enabled bool) Option {
	return func(o *Options) {
		o.IsolateToolFailures = enabled
	}
}

// WithMaxConcurrentTools limits concurrent tool execution within a step.
func WithMaxConcurrentTools(n int) Option {
	return func(o *Options) {
		o.MaxConcurrentTools = n
	}
}

// WithRunIDGenerator replaces the run identifier generator.
func WithRunIDGenerator(fn func() string) Option {
	return func(o *Options) {
		o.NewRunID = fn
	}
}

// ApplyOptions applies functional options to an Options struct with defaults.
func ApplyOptions(opts ...Option) *Options {
	o := &Options{
		Logger:   zerolog.Nop(),
		NewRunID: newRunID,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.NewRunID == nil {
		o.NewRunID = newRunID
	}
	return o
}

func newRunID() string {
	id, _ := gonanoid.New()
	return "run_" + id
}
