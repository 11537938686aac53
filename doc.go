// Package codison is a conversational coding-agent runtime.
//
// It drives a multi-turn loop between a language model provider and a set of
// local tools, streaming incremental output to consumers while recording the
// conversation in an append-only history.
//
// This package defines the shared vocabulary used by every other package:
//
//   - [Message]: a closed set of history entries ([UserTurn], [AssistantTurn],
//     [ToolCallRequest], [ToolCallResult])
//   - [Provider]: a model backend that streams [ProviderEvent] values for one turn
//   - [ProviderHandler]: the exhaustive visitor every event translator implements
//   - [ToolSpec]: the description of a tool offered to the model
//   - [Error]: categorized provider errors used for retry decisions
//
// The orchestration loop lives in [github.com/spetersoncode/codison/agent],
// the fan-out adapter in [github.com/spetersoncode/codison/channel], and
// provider implementations under github.com/spetersoncode/codison/provider.
//
// # Basic Usage
//
//	p := openai.New(os.Getenv("OPENAI_API_KEY"))
//	reg := tool.NewRegistry().Add(tool.Defaults(tool.Config{WorkingDir: "."})...)
//
//	a := agent.New(p, history.New(), reg)
//	res, err := a.Run(ctx, "List the Go files in this repository")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Text)
package codison
