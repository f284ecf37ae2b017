package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/docgpt/internal/common"
)

// GeminiEmbedder uses the Gemini embedContent API with a fixed output dimension
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	dim     int
	timeout time.Duration
	batch   *batcher
	logger  arbor.ILogger
}

func NewGeminiEmbedder(ctx context.Context, cfg *common.EmbeddingConfig, logger arbor.ILogger) (*GeminiEmbedder, error) {
	apiKey, err := common.ResolveAPIKey("embedding_api_key", cfg.APIKey)
	if err != nil {
		apiKey, err = common.ResolveAPIKey("gemini_api_key", "")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" || model == common.NewDefaultConfig().Embedding.Model {
		model = "gemini-embedding-001"
	}

	return &GeminiEmbedder{
		client:  client,
		model:   model,
		dim:     cfg.Dimension,
		timeout: common.ParseDuration(cfg.Timeout, 60*time.Second),
		batch:   newBatcher(cfg.BatchSize, cfg.Concurrency, cfg.RateLimit),
		logger:  logger,
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &common.EmbeddingError{Err: fmt.Errorf("cannot embed empty text")}
	}
	vectors, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, &common.EmbeddingError{Err: err}
	}
	return vectors[0], nil
}

func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.batch.run(ctx, texts, e.request)
	if err != nil {
		return nil, &common.EmbeddingError{Err: err}
	}
	e.logger.Debug().Str("model", e.model).Int("texts", len(texts)).Msg("Generated embeddings")
	return vectors, nil
}

func (e *GeminiEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	outputDim := int32(e.dim)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding API error: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings from Gemini", len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) != e.dim {
			actual := 0
			if emb != nil {
				actual = len(emb.Values)
			}
			return nil, &common.DimensionMismatchError{Expected: e.dim, Actual: actual}
		}
		v := make([]float32, len(emb.Values))
		copy(v, emb.Values)
		vectors[i] = common.Normalize(v)
	}
	return vectors, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dim
}

func (e *GeminiEmbedder) ModelInfo() string {
	return "gemini-" + e.model
}
