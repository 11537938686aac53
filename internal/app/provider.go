package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/internal/config"
	"github.com/spetersoncode/codison/provider/anthropic"
	"github.com/spetersoncode/codison/provider/google"
	"github.com/spetersoncode/codison/provider/openai"
)

// NewProvider builds the provider selected by cfg.
func NewProvider(ctx context.Context, cfg *config.Config, system string, logger zerolog.Logger) (codison.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := cfg.ResolveProvider()
	key := cfg.APIKey(name)
	logger = logger.With().Str("provider", name).Logger()

	switch name {
	case config.ProviderOpenAI:
		return openai.New(key,
			openai.WithModel(cfg.Model),
			openai.WithSystemPrompt(system),
			openai.WithLogger(logger),
		), nil
	case config.ProviderAnthropic:
		return anthropic.New(key,
			anthropic.WithModel(cfg.Model),
			anthropic.WithSystemPrompt(system),
			anthropic.WithLogger(logger),
		), nil
	case config.ProviderGoogle:
		p, err := google.New(ctx, key,
			google.WithModel(cfg.Model),
			google.WithSystemPrompt(system),
			google.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create google provider: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown provider: %s", name)
}
