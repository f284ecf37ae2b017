package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/ternarybob/docgpt/internal/common"
)

// HashEmbedder is a local, deterministic embedder using feature hashing of
// word unigrams and bigrams. It needs no model files or network access and
// gives lexical rather than semantic similarity.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	return &HashEmbedder{dim: dimension}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, &common.EmbeddingError{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &common.EmbeddingError{Err: fmt.Errorf("cannot embed empty text")}
	}

	vec := make([]float32, e.dim)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		tokens = []string{strings.TrimSpace(text)}
	}
	for i, tok := range tokens {
		e.add(vec, tok, 1.0)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return common.Normalize(vec), nil
}

// add hashes feature into a bucket with a hash-derived sign
func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (e *HashEmbedder) Dimension() int {
	return e.dim
}

func (e *HashEmbedder) ModelInfo() string {
	return fmt.Sprintf("hash-%d", e.dim)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
