package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
	"github.com/spetersoncode/codison/internal/retry"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
)

var errEmptyStream = errors.New("anthropic: stream ended before the first event")

// Client streams messages from the Anthropic API.
type Client struct {
	client       *anthropic.Client
	model        string
	systemPrompt string
	maxTokens    int
	retry        retry.Config
	logger       zerolog.Logger
	reqOpts      []option.RequestOption
}

// New creates a new Anthropic client with the given API key.
func New(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		retry:     retry.DefaultConfig(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, c.reqOpts...)
	client := anthropic.NewClient(reqOpts...)
	c.client = &client
	return c
}

// ClientOption configures the Anthropic client.
type ClientOption func(*Client)

// WithModel sets the model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) {
		c.systemPrompt = prompt
	}
}

// WithMaxTokens caps the tokens generated per turn. The API requires a
// limit, so values below 1 keep DefaultMaxTokens.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
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

// WithRequestOptions passes options through to the SDK client.
func WithRequestOptions(opts ...option.RequestOption) ClientOption {
	return func(c *Client) {
		c.reqOpts = append(c.reqOpts, opts...)
	}
}

// Name implements codison.Provider.
func (c *Client) Name() string { return "anthropic" }

// Model implements codison.Provider.
func (c *Client) Model() string { return c.model }

// Stream sends the conversation and streams the model's reply.
func (c *Client) Stream(ctx context.Context, req codison.StreamRequest) (<-chan codison.StreamItem, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages:  convertMessages(req.Messages),
	}
	if c.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.systemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	cfg := provider.RetryConfig(c.retry, c.logger, c.Name())
	return retry.DoStream(ctx, cfg, func() (<-chan codison.StreamItem, error) {
		stream := c.client.Messages.NewStreaming(ctx, params)
		if !stream.Next() {
			err := stream.Err()
			stream.Close()
			if err == nil {
				err = errEmptyStream
			}
			return nil, wrapError(err)
		}

		ch := make(chan codison.StreamItem)
		go relay(ctx, stream, ch)
		return ch, nil
	})
}

func relay(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], ch chan<- codison.StreamItem) {
	defer close(ch)
	defer stream.Close()

	s := provider.NewSender(ctx, ch)
	var acc anthropic.Message
	// toolBlocks maps content block indexes to tool_use ids.
	toolBlocks := map[int64]string{}

	for {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			s.Fail(codison.NewMalformedOutputError("anthropic stream event "+event.Type, err))
			return
		}

		events, err := translate(event, &acc, toolBlocks)
		if err != nil {
			s.Fail(err)
			return
		}
		if !s.Events(events...) {
			return
		}
		if !stream.Next() {
			break
		}
	}

	if err := stream.Err(); err != nil {
		s.Fail(wrapError(err))
		return
	}

	var text strings.Builder
	for _, block := range acc.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	var usage *codison.Usage
	if acc.Usage.InputTokens > 0 || acc.Usage.OutputTokens > 0 {
		usage = &codison.Usage{
			InputTokens:  int(acc.Usage.InputTokens),
			OutputTokens: int(acc.Usage.OutputTokens),
		}
	}
	s.Events(provider.Terminal(text.String(), usage)...)
}

// translate maps a stream event onto the provider events it produces
// immediately. A tool call is reported when its block stops, with the
// input accumulated so far. The complete text is reported at the end.
func translate(event anthropic.MessageStreamEventUnion, acc *anthropic.Message, toolBlocks map[int64]string) ([]codison.ProviderEvent, error) {
	switch event.Type {
	case "message_start":
		if id := event.AsMessageStart().Message.ID; id != "" {
			return []codison.ProviderEvent{codison.Start{TurnID: id}}, nil
		}
	case "content_block_start":
		start := event.AsContentBlockStart()
		if start.ContentBlock.Type == "tool_use" {
			toolBlocks[start.Index] = start.ContentBlock.ID
			return []codison.ProviderEvent{codison.ToolStart{CallID: start.ContentBlock.ID, Name: start.ContentBlock.Name}}, nil
		}
	case "content_block_delta":
		delta := event.AsContentBlockDelta().Delta
		if delta.Type == "text_delta" && delta.Text != "" {
			return []codison.ProviderEvent{codison.PartialText{Delta: delta.Text}}, nil
		}
	case "content_block_stop":
		index := event.AsContentBlockStop().Index
		id, ok := toolBlocks[index]
		if !ok {
			return nil, nil
		}
		delete(toolBlocks, index)
		if index < 0 || int(index) >= len(acc.Content) {
			return nil, codison.NewMalformedOutputError("tool_use block stopped before it started", nil)
		}
		block := acc.Content[index]
		args, err := provider.ParseArgs(block.Name, string(block.Input))
		if err != nil {
			return nil, err
		}
		return []codison.ProviderEvent{
			codison.ToolEnd{CallID: id},
			codison.ToolCall{CallID: id, Name: block.Name, Args: args},
		}, nil
	}
	return nil, nil
}

var _ codison.Provider = (*Client)(nil)
