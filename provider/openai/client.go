package openai

import (
	"context"
	"errors"
	"math"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
	"github.com/spetersoncode/codison/internal/retry"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

var errEmptyStream = errors.New("openai: stream ended before the first chunk")

// Client streams chat completions from the OpenAI API.
type Client struct {
	client       *openai.Client
	model        string
	systemPrompt string
	maxTokens    int
	retry        retry.Config
	logger       zerolog.Logger
	reqOpts      []option.RequestOption
}

// New creates a new OpenAI client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		model:  DefaultModel,
		retry:  retry.DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Retries happen in Stream, where they are logged and honor Retry-After.
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, c.reqOpts...)
	client := openai.NewClient(reqOpts...)
	c.client = &client
	return c
}

// ClientOption configures the OpenAI client.
type ClientOption func(*Client)

// WithModel sets the model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSystemPrompt sets the system message sent before the history.
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithMaxTokens caps the tokens generated per turn.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithRetry sets the retry policy for opening a stream.
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithLogger sets the logger used for retries.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestOptions passes options through to the SDK client, such as
// option.WithBaseURL.
func WithRequestOptions(opts ...option.RequestOption) ClientOption {
	return func(c *Client) {
		c.reqOpts = append(c.reqOpts, opts...)
	}
}

// Name implements codison.Provider.
func (c *Client) Name() string { return "openai" }

// Model implements codison.Provider.
func (c *Client) Model() string { return c.model }

// Stream sends the conversation and streams the model's reply.
func (c *Client) Stream(ctx context.Context, req codison.StreamRequest) (<-chan codison.StreamItem, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertMessages(c.systemPrompt, req.Messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	cfg := provider.RetryConfig(c.retry, c.logger, c.Name())
	return retry.DoStream(ctx, cfg, func() (<-chan codison.StreamItem, error) {
		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		// The first chunk is read here so that connection failures are
		// returned from Stream and can be retried.
		if !stream.Next() {
			err := stream.Err()
			stream.Close()
			if err == nil {
				err = errEmptyStream
			}
			return nil, wrapError(err)
		}

		ch := make(chan codison.StreamItem)
		go c.relay(ctx, stream, ch)
		return ch, nil
	})
}

func (c *Client) relay(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk], ch chan<- codison.StreamItem) {
	defer close(ch)
	defer stream.Close()

	s := provider.NewSender(ctx, ch)
	var acc openai.ChatCompletionAccumulator
	started := false
	// sent counts the tool calls already reported.
	sent := 0

	for {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if !started && chunk.ID != "" {
			started = true
			if !s.Event(codison.Start{TurnID: chunk.ID}) {
				return
			}
		}
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				if !s.Event(codison.PartialText{Delta: choice.Delta.Content}) {
					return
				}
			}

			// A call is complete once a later one starts or the choice finishes.
			limit := sent
			for _, tc := range choice.Delta.ToolCalls {
				limit = max(limit, int(tc.Index))
			}
			if choice.FinishReason != "" {
				limit = math.MaxInt
			}
			if !sendToolCalls(s, &acc, &sent, limit) {
				return
			}
		}

		if !stream.Next() {
			break
		}
	}

	if err := stream.Err(); err != nil {
		s.Fail(wrapError(err))
		return
	}
	if !sendToolCalls(s, &acc, &sent, math.MaxInt) {
		return
	}

	var text string
	if len(acc.Choices) > 0 {
		text = acc.Choices[0].Message.Content
	}
	var usage *codison.Usage
	if acc.Usage.PromptTokens > 0 || acc.Usage.CompletionTokens > 0 {
		usage = &codison.Usage{
			InputTokens:  int(acc.Usage.PromptTokens),
			OutputTokens: int(acc.Usage.CompletionTokens),
		}
	}
	s.Events(provider.Terminal(text, usage)...)
}

// sendToolCalls reports the accumulated tool calls from *sent up to limit.
// It returns false once the stream is over, either because arguments were
// malformed or because the consumer left.
func sendToolCalls(s *provider.Sender, acc *openai.ChatCompletionAccumulator, sent *int, limit int) bool {
	if len(acc.Choices) == 0 {
		return true
	}
	calls := acc.Choices[0].Message.ToolCalls
	for ; *sent < min(limit, len(calls)); *sent++ {
		tc := calls[*sent]
		args, err := provider.ParseArgs(tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			s.Fail(err)
			return false
		}
		if !s.Event(codison.ToolCall{CallID: tc.ID, Name: tc.Function.Name, Args: args}) {
			return false
		}
	}
	return true
}

var _ codison.Provider = (*Client)(nil)
