// Package agent drives the loop between a model provider and a tool registry.
//
// Each run appends the prompt to the agent's History and then repeats a step
// until the model answers without requesting tools. A step sends the whole
// history to the provider, forwards the provider's events as they arrive and
// appends the assistant text and tool call requests to the history. If the
// model requested tools, they all start at once and their outputs are
// appended before the next step begins.
//
// # Basic Usage
//
//	reg := tool.NewRegistry().Add(tool.Defaults(tool.Config{WorkingDir: dir})...)
//	a := agent.New(provider, history.New(), reg)
//
//	result, err := a.Run(ctx, "list the go files in this repo")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.Text)
//
// # Streaming Events
//
// RunStream returns the run's events. The channel ends with exactly one
// terminal event, event.Done or event.Error:
//
//	events, err := a.RunStream(ctx, prompt)
//	if err != nil {
//	    return err
//	}
//	event.Drain(events, event.HandlerFuncs{
//	    PartialText: func(e event.PartialText) { fmt.Print(e.Delta) },
//	    ToolCall:    func(e event.ToolCall) { fmt.Printf("\n[%s]\n", e.Name) },
//	    Error:       func(e event.Error) { fmt.Println("error:", e.Message()) },
//	})
//
// Cancelling the context passed to RunStream stops the run: the provider
// connection is released and no further messages are appended.
//
// # Tool Failures
//
// By default any failing tool call fails the run and the outputs of its
// sibling calls are discarded. WithToolFailureIsolation(true) instead
// reports "Error: <message>" as the failing call's output and continues.
// A call naming an unregistered tool always fails the run before any tool
// in the step executes.
package agent
