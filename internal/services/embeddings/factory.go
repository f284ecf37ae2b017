// Package embeddings provides the Embedder implementations selected by
// [embedding] provider.
package embeddings

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
)

// NewEmbedder builds the configured embedder
func NewEmbedder(ctx context.Context, cfg *common.EmbeddingConfig, logger arbor.ILogger) (interfaces.Embedder, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	var (
		embedder interfaces.Embedder
		err      error
	)
	switch cfg.Provider {
	case common.EmbeddingProviderHash, "":
		embedder = NewHashEmbedder(cfg.Dimension)
	case common.EmbeddingProviderOpenAI:
		embedder, err = NewOpenAIEmbedder(cfg, logger)
	case common.EmbeddingProviderGemini:
		embedder, err = NewGeminiEmbedder(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", string(cfg.Provider)).
		Str("model", embedder.ModelInfo()).
		Int("dimension", embedder.Dimension()).
		Msg("Embedder initialized")

	return embedder, nil
}
