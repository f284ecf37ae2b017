package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
)

// DefaultOpenAIBaseURL is Groq's OpenAI-compatible endpoint
const DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider talks to any OpenAI-compatible chat completions API
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger arbor.ILogger
}

func NewOpenAIProvider(config *common.OpenAIConfig, logger arbor.ILogger) (*OpenAIProvider, error) {
	apiKey, err := common.ResolveAPIKey("openai_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve OpenAI API key: %w", err)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	clientConfig.BaseURL = strings.TrimRight(baseURL, "/")

	model := config.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}

	logger.Debug().Str("base_url", clientConfig.BaseURL).Str("model", model).Msg("OpenAI-compatible provider initialized")
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

func (p *OpenAIProvider) buildRequest(request *ContentRequest, stream bool) (openai.ChatCompletionRequest, error) {
	messages, err := convertMessagesToOpenAI(request.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	return openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: request.Temperature,
		TopP:        request.TopP,
		MaxTokens:   request.MaxTokens,
		Stream:      stream,
	}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, request *ContentRequest) (string, error) {
	req, err := p.buildRequest(request, false)
	if err != nil {
		return "", err
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from %s", p.model)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, request *ContentRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req, err := p.buildRequest(request, true)
		if err != nil {
			yield("", err)
			return
		}

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

func (p *OpenAIProvider) GetProviderType() ProviderType {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Close() error {
	return nil
}
