package google

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/provider"
	"github.com/spetersoncode/codison/internal/retry"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash-001"

var errEmptyStream = errors.New("google: stream returned no data")

// Client streams content from the Gemini API.
type Client struct {
	client       *genai.Client
	model        string
	systemPrompt string
	maxTokens    int
	baseURL      string
	retry        retry.Config
	logger       zerolog.Logger
}

// New creates a new Google GenAI client with the given API key.
func New(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:  DefaultModel,
		retry:  retry.DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions.BaseURL = c.baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// ClientOption configures the Google client.
type ClientOption func(*Client)

// WithModel sets the model for requests.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithSystemPrompt sets the system instruction.
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

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
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

// Name implements codison.Provider.
func (c *Client) Name() string { return "google" }

// Model implements codison.Provider.
func (c *Client) Model() string { return c.model }

// Stream sends the conversation and streams the model's reply.
func (c *Client) Stream(ctx context.Context, req codison.StreamRequest) (<-chan codison.StreamItem, error) {
	contents := convertMessages(req.Messages)
	config := &genai.GenerateContentConfig{}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = int32(c.maxTokens)
	}
	if c.systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: c.systemPrompt}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = convertTools(req.Tools)
	}

	cfg := provider.RetryConfig(c.retry, c.logger, c.Name())
	return retry.DoStream(ctx, cfg, func() (<-chan codison.StreamItem, error) {
		next, stop := iter.Pull2(c.client.Models.GenerateContentStream(ctx, c.model, contents, config))
		first, err, ok := next()
		if !ok {
			stop()
			return nil, errEmptyStream
		}
		if err == nil {
			err = blocked(first)
		}
		if err != nil {
			stop()
			return nil, wrapError(err)
		}

		ch := make(chan codison.StreamItem)
		go relay(ctx, first, next, stop, ch)
		return ch, nil
	})
}

func relay(
	ctx context.Context,
	resp *genai.GenerateContentResponse,
	next func() (*genai.GenerateContentResponse, error, bool),
	stop func(),
	ch chan<- codison.StreamItem,
) {
	defer close(ch)
	defer stop()

	s := provider.NewSender(ctx, ch)
	var (
		text    strings.Builder
		usage   *codison.Usage
		started bool
	)

	for {
		if !started && resp.ResponseID != "" {
			started = true
			if !s.Event(codison.Start{TurnID: resp.ResponseID}) {
				return
			}
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			for _, part := range resp.Candidates[0].Content.Parts {
				switch {
				case part.FunctionCall != nil:
					args := part.FunctionCall.Args
					if args == nil {
						args = map[string]any{}
					}
					call := codison.ToolCall{
						CallID: part.FunctionCall.ID,
						Name:   part.FunctionCall.Name,
						Args:   args,
					}
					if !s.Event(call) {
						return
					}
				case part.Text != "" && !part.Thought:
					text.WriteString(part.Text)
					if !s.Event(codison.PartialText{Delta: part.Text}) {
						return
					}
				}
			}
		}

		// Each chunk reports cumulative usage.
		if m := resp.UsageMetadata; m != nil {
			usage = &codison.Usage{
				InputTokens:  int(m.PromptTokenCount),
				OutputTokens: int(m.CandidatesTokenCount),
			}
		}

		var err error
		var ok bool
		resp, err, ok = next()
		if !ok {
			break
		}
		if err == nil {
			err = blocked(resp)
		}
		if err != nil {
			s.Fail(wrapError(err))
			return
		}
	}

	s.Events(provider.Terminal(text.String(), usage)...)
}

var _ codison.Provider = (*Client)(nil)
