// Package openai implements codison.Provider on the OpenAI Chat Completions
// API.
//
// The client streams each turn, forwarding content deltas as they arrive.
// A tool call is reported once the next call starts or the choice finishes,
// and the accumulated text and token usage close the turn:
//
//	p := openai.New(os.Getenv("OPENAI_API_KEY"), openai.WithModel("gpt-4o"))
//	a := agent.New(p, history.New(), registry)
//
// Rate limits and server errors are retried according to WithRetry before
// the first chunk arrives. Failures after that end the stream with an error.
package openai
