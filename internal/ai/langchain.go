package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/local/examparser/internal/config"
	"github.com/local/examparser/internal/metrics"
)

// LLM is a Client backed by a langchaingo model.
type LLM struct {
	provider    string
	model       string
	temperature float64
	llm         llms.Model
}

// New builds the client selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (*LLM, error) {
	var (
		model llms.Model
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case "googleai", "google", "gemini", "":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("missing GOOGLE_API_KEY")
		}
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleAPIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY")
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(cfg.OpenAIAPIKey)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		model, err = openai.New(opts...)
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
		}
		model, err = anthropic.New(anthropic.WithModel(cfg.Model), anthropic.WithToken(cfg.AnthropicAPIKey))
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return Wrap(cfg.Provider, cfg.Model, cfg.Temperature, model), nil
}

// Wrap adapts an already constructed langchaingo model.
func Wrap(provider, model string, temperature float64, m llms.Model) *LLM {
	if provider == "" {
		provider = "googleai"
	}
	return &LLM{provider: strings.ToLower(provider), model: model, temperature: temperature, llm: m}
}

func (c *LLM) Name() string { return c.provider + "/" + c.model }

// Invoke sends prompt as a single human message.
func (c *LLM) Invoke(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(c.temperature))
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmpty
	}
	dur := time.Since(start)
	metrics.ObserveProvider(c.provider, c.model, Result(err), dur)
	if err != nil {
		log.Debug().
			Str("provider", c.provider).
			Str("model", c.model).
			Dur("duration", dur).
			Err(err).
			Msg("language service call failed")
		return "", classify("ai.invoke", err)
	}
	return out, nil
}
