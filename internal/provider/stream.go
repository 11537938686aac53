package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/retry"
)

// Sender delivers provider events to a stream channel until the consumer
// goes away.
type Sender struct {
	ctx context.Context
	ch  chan<- codison.StreamItem
}

// NewSender returns a Sender writing to ch.
func NewSender(ctx context.Context, ch chan<- codison.StreamItem) *Sender {
	return &Sender{ctx: ctx, ch: ch}
}

// Event sends ev and reports whether it was delivered.
func (s *Sender) Event(ev codison.ProviderEvent) bool {
	return s.send(codison.StreamItem{Event: ev})
}

// Events sends evs in order, stopping at the first undelivered one.
func (s *Sender) Events(evs ...codison.ProviderEvent) bool {
	for _, ev := range evs {
		if !s.Event(ev) {
			return false
		}
	}
	return true
}

// Fail sends err as the terminal item of the stream.
func (s *Sender) Fail(err error) {
	s.send(codison.StreamItem{Err: err})
}

func (s *Sender) send(item codison.StreamItem) bool {
	select {
	case s.ch <- item:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Terminal builds the closing events of a turn. Tool calls have already
// been sent as they completed, so this is a FullText carrying usage when
// text is non-empty, a bare UsageReport otherwise, or nothing at all.
func Terminal(text string, usage *codison.Usage) []codison.ProviderEvent {
	if usage != nil && usage.IsZero() {
		usage = nil
	}
	switch {
	case text != "":
		return []codison.ProviderEvent{codison.FullText{Content: text, Usage: usage}}
	case usage != nil:
		return []codison.ProviderEvent{codison.UsageReport{Usage: *usage}}
	}
	return nil
}

// ParseArgs decodes a tool call's JSON arguments. Blank input is an empty
// object; anything that is not a JSON object is malformed model output.
func ParseArgs(name, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, codison.NewMalformedOutputError(fmt.Sprintf("arguments for tool %q", name), err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// RequiredFields returns the schema's "required" list.
func RequiredFields(schema map[string]any) []string {
	var required []string
	switch v := schema["required"].(type) {
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	case []string:
		required = append(required, v...)
	}
	return required
}

// RetryConfig returns cfg with retries logged to logger when cfg has no
// OnRetry of its own.
func RetryConfig(cfg retry.Config, logger zerolog.Logger, provider string) retry.Config {
	if cfg.OnRetry != nil {
		return cfg
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn().
			Err(err).
			Str("provider", provider).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying stream")
	}
	return cfg
}
