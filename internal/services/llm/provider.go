package llm

import (
	"context"
	"fmt"
	"iter"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderOpenAI uses an OpenAI-compatible chat completions endpoint
	ProviderOpenAI ProviderType = "openai"
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
	// ProviderOffline answers from the grounding context without a model
	ProviderOffline ProviderType = "offline"
)

// ContentRequest represents a provider-agnostic content generation request
type ContentRequest struct {
	Messages    []interfaces.Message
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Provider is one completion backend
type Provider interface {
	// Complete returns the full answer text
	Complete(ctx context.Context, request *ContentRequest) (string, error)

	// Stream yields text fragments as they arrive. A non-nil error ends the sequence.
	Stream(ctx context.Context, request *ContentRequest) iter.Seq2[string, error]

	GetProviderType() ProviderType
	Model() string
	Close() error
}

// NewProvider builds the provider named by llm.default_provider
func NewProvider(ctx context.Context, config *common.Config, logger arbor.ILogger) (Provider, error) {
	switch ProviderType(config.LLM.DefaultProvider) {
	case ProviderOpenAI, "":
		return NewOpenAIProvider(&config.OpenAI, logger)
	case ProviderGemini:
		return NewGeminiProvider(ctx, &config.Gemini, logger)
	case ProviderClaude:
		return NewClaudeProvider(&config.Claude, logger)
	case ProviderOffline:
		return NewOfflineProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (supported: openai, gemini, claude, offline)", config.LLM.DefaultProvider)
	}
}
