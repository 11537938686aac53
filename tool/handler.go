package tool

import (
	"context"

	"github.com/spetersoncode/codison"
)

// Handler executes a tool call and returns its text output.
// A returned error is a tool failure, distinct from a normal output.
type Handler func(ctx context.Context, call codison.ToolCallRequest) (string, error)

// TypedHandler is a function that executes a tool call with typed arguments.
// The args parameter is decoded from the call's arguments.
type TypedHandler[T any] func(ctx context.Context, args T) (string, error)
