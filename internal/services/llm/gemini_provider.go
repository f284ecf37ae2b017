package llm

import (
	"context"
	"fmt"
	"iter"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/docgpt/internal/common"
)

// GeminiProvider generates with the Google Gemini API
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger arbor.ILogger
}

func NewGeminiProvider(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	apiKey, err := common.ResolveAPIKey("gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	logger.Debug().Str("model", model).Msg("Gemini provider initialized")
	return &GeminiProvider{client: client, model: model, logger: logger}, nil
}

func (p *GeminiProvider) buildRequest(request *ContentRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents, systemText, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return nil, nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(request.Temperature),
		TopP:        genai.Ptr(request.TopP),
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	return contents, config, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, request *ContentRequest) (string, error) {
	contents, config, err := p.buildRequest(request)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}
	return text, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, request *ContentRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents, config, err := p.buildRequest(request)
		if err != nil {
			yield("", err)
			return
		}

		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
			if err != nil {
				yield("", err)
				return
			}
			if resp == nil {
				continue
			}
			if text := resp.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func (p *GeminiProvider) GetProviderType() ProviderType {
	return ProviderGemini
}

func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) Close() error {
	p.client = nil
	return nil
}
