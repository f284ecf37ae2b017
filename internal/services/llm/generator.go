package llm

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
)

// StreamApology is the fragment yielded when a stream fails
const StreamApology = "Sorry, I encountered an error generating a response."

const defaultGenerationTimeout = 2 * time.Minute

var _ interfaces.Generator = (*Generator)(nil)

// Generator wraps a Provider with fixed sampling parameters, a timeout and
// retries. It never returns an error; failures become answer text.
type Generator struct {
	provider Provider
	config   *common.GenerationConfig
	retry    *RetryConfig
	timeout  time.Duration
	logger   arbor.ILogger
}

// GeneratorOption configures the Generator.
type GeneratorOption func(*Generator)

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(retry *RetryConfig) GeneratorOption {
	return func(g *Generator) {
		g.retry = retry
	}
}

func NewGenerator(provider Provider, config *common.GenerationConfig, logger arbor.ILogger, opts ...GeneratorOption) *Generator {
	retry := NewDefaultRetryConfig()
	if config.MaxRetries >= 0 {
		retry.MaxRetries = config.MaxRetries
	}

	g := &Generator{
		provider: provider,
		config:   config,
		retry:    retry,
		timeout:  common.ParseDuration(config.Timeout, defaultGenerationTimeout),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) request(messages []interfaces.Message) *ContentRequest {
	return &ContentRequest{
		Messages:    messages,
		Temperature: g.config.Temperature,
		TopP:        g.config.TopP,
		MaxTokens:   g.config.MaxTokens,
	}
}

// Generate returns the complete answer, or an error description as the answer
func (g *Generator) Generate(ctx context.Context, messages []interfaces.Message) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	request := g.request(messages)
	var lastErr error
	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		text, err := g.provider.Complete(ctx, request)
		if err == nil {
			return text
		}
		lastErr = err

		if attempt == g.retry.MaxRetries || !retryable(ctx, err) {
			break
		}

		backoff := g.retry.backoffFor(attempt, err)
		g.logger.Warn().
			Str("provider", string(g.provider.GetProviderType())).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying completion call")

		if err := sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	g.logger.Error().
		Str("provider", string(g.provider.GetProviderType())).
		Str("model", g.provider.Model()).
		Err(lastErr).
		Msg("Completion failed")
	return fmt.Sprintf("Error connecting to the language model (%s). Error: %v", g.provider.GetProviderType(), lastErr)
}

// GenerateStream yields fragments as they arrive. Only failures before the
// first fragment are retried; any later failure yields StreamApology with the
// cause and ends the sequence. Stopping the range stops the backend stream.
func (g *Generator) GenerateStream(ctx context.Context, messages []interfaces.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		request := g.request(messages)
		emitted := 0
		var lastErr error

		for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
			var streamErr error
			for fragment, err := range g.provider.Stream(ctx, request) {
				if err != nil {
					streamErr = err
					break
				}
				emitted++
				if !yield(fragment, nil) {
					return
				}
			}
			if streamErr == nil {
				return
			}
			lastErr = streamErr

			if emitted > 0 || attempt == g.retry.MaxRetries || !retryable(ctx, streamErr) {
				break
			}

			backoff := g.retry.backoffFor(attempt, streamErr)
			g.logger.Warn().
				Str("provider", string(g.provider.GetProviderType())).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(streamErr).
				Msg("Retrying stream before first token")

			if err := sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}

		g.logger.Error().
			Str("provider", string(g.provider.GetProviderType())).
			Int("fragments", emitted).
			Err(lastErr).
			Msg("Stream failed")
		yield(StreamApology, lastErr)
	}
}

func (g *Generator) ModelInfo() string {
	return fmt.Sprintf("%s/%s", g.provider.GetProviderType(), g.provider.Model())
}

// Close releases the provider
func (g *Generator) Close() error {
	return g.provider.Close()
}
