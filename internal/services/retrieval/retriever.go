// Package retrieval runs document-scoped similarity search for chat turns.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/models"
)

var _ interfaces.Retriever = (*Retriever)(nil)

// Retriever embeds a query with the indexing embedder and searches one document
type Retriever struct {
	embedder interfaces.Embedder
	index    interfaces.VectorIndex
	logger   arbor.ILogger
}

func NewRetriever(embedder interfaces.Embedder, index interfaces.VectorIndex, logger arbor.ILogger) *Retriever {
	return &Retriever{embedder: embedder, index: index, logger: logger}
}

// Retrieve returns up to topK passages of documentID ordered by ascending
// distance. A document without chunks yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, documentID string, query string, topK int) ([]models.Passage, error) {
	if documentID == "" {
		return nil, common.NewValidationError("document_id", "document id is required")
	}
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return []models.Passage{}, nil
	}

	if indexDim := r.index.Dimension(); indexDim != 0 && indexDim != r.embedder.Dimension() {
		return nil, &common.DimensionMismatchError{Expected: indexDim, Actual: r.embedder.Dimension()}
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Search(ctx, vector, models.PointFilter{DocumentID: documentID}, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search document %s: %w", documentID, err)
	}

	passages := make([]models.Passage, 0, len(hits))
	for _, hit := range hits {
		if hit.Payload.DocumentID != documentID {
			// Never surface another document's text, whatever the backend returned
			r.logger.Warn().
				Str("document_id", documentID).
				Str("foreign_document_id", hit.Payload.DocumentID).
				Msg("Vector index returned a point outside the filter")
			continue
		}
		passages = append(passages, models.Passage{
			DocumentID: hit.Payload.DocumentID,
			PageNumber: hit.Payload.PageNumber,
			ChunkIndex: hit.Payload.ChunkIndex,
			Text:       hit.Payload.Text,
			Distance:   1 - hit.Score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Distance < passages[j].Distance
	})

	r.logger.Debug().
		Str("document_id", documentID).
		Int("top_k", topK).
		Int("passages", len(passages)).
		Msg("Context retrieved")
	return passages, nil
}
