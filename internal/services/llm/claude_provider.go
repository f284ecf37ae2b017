package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
)

// ClaudeProvider generates with the Anthropic Messages API
type ClaudeProvider struct {
	client anthropic.Client
	model  string
	logger arbor.ILogger
}

func NewClaudeProvider(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeProvider, error) {
	apiKey, err := common.ResolveAPIKey("anthropic_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	model := config.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}

	logger.Debug().Str("model", model).Msg("Claude provider initialized")
	return &ClaudeProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}, nil
}

func (p *ClaudeProvider) buildParams(request *ContentRequest) (anthropic.MessageNewParams, error) {
	messages, systemText, err := convertMessagesToClaude(request.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(request.Temperature))
	}
	if request.TopP > 0 {
		params.TopP = anthropic.Float(float64(request.TopP))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}
	return params, nil
}

func (p *ClaudeProvider) Complete(ctx context.Context, request *ContentRequest) (string, error) {
	params, err := p.buildParams(request)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	return text.String(), nil
}

func (p *ClaudeProvider) Stream(ctx context.Context, request *ContentRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params, err := p.buildParams(request)
		if err != nil {
			yield("", err)
			return
		}

		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := event.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			if !yield(delta.Text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", err)
		}
	}
}

func (p *ClaudeProvider) GetProviderType() ProviderType {
	return ProviderClaude
}

func (p *ClaudeProvider) Model() string {
	return p.model
}

func (p *ClaudeProvider) Close() error {
	return nil
}
