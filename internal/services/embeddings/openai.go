package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
// Setting BaseURL points it at Ollama or any other compatible server.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	dim     int
	timeout time.Duration
	batch   *batcher
	logger  arbor.ILogger
}

// NewOpenAIEmbedder creates an embedder for cfg. The API key is optional for
// local servers.
func NewOpenAIEmbedder(cfg *common.EmbeddingConfig, logger arbor.ILogger) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required for provider %s", cfg.Provider)
	}

	apiKey, err := common.ResolveAPIKey("embedding_api_key", cfg.APIKey)
	if err != nil {
		if cfg.BaseURL == "" {
			apiKey, err = common.ResolveAPIKey("openai_api_key", "")
			if err != nil {
				return nil, fmt.Errorf("failed to resolve embedding API key: %w", err)
			}
		}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		dim:     cfg.Dimension,
		timeout: common.ParseDuration(cfg.Timeout, 60*time.Second),
		batch:   newBatcher(cfg.BatchSize, cfg.Concurrency, cfg.RateLimit),
		logger:  logger,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &common.EmbeddingError{Err: fmt.Errorf("cannot embed empty text")}
	}
	vectors, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, &common.EmbeddingError{Err: err}
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.batch.run(ctx, texts, e.request)
	if err != nil {
		return nil, &common.EmbeddingError{Err: err}
	}

	e.logger.Debug().
		Str("model", e.model).
		Int("texts", len(texts)).
		Dur("duration", time.Since(start)).
		Msg("Generated embeddings")

	return vectors, nil
}

// request embeds texts in one API call
func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings API error: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		if len(item.Embedding) != e.dim {
			return nil, &common.DimensionMismatchError{Expected: e.dim, Actual: len(item.Embedding)}
		}
		v := make([]float32, len(item.Embedding))
		for i := range item.Embedding {
			v[i] = float32(item.Embedding[i])
		}
		vectors[item.Index] = common.Normalize(v)
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dim
}

func (e *OpenAIEmbedder) ModelInfo() string {
	return "openai-" + e.model
}
