package models

import (
	"fmt"
	"hash/fnv"
)

// Page is the text of one PDF page. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chunk is a window of document text ready for embedding.
// Index restarts at 0 on every page.
type Chunk struct {
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Index      int    `json:"chunk_index"`
	Text       string `json:"text"`
	Start      int    `json:"start"` // Rune offset of the window in the page text
	End        int    `json:"end"`
}

// ChunkID is the stable textual identity of a chunk
func ChunkID(documentID string, pageNumber, chunkIndex int) string {
	return fmt.Sprintf("%s_page%d_chunk%d", documentID, pageNumber, chunkIndex)
}

// PointID maps a chunk identity to a deterministic unsigned id.
// The FNV-1a hash is masked to 63 bits so it also fits signed integer columns.
// Re-indexing the same document overwrites its points instead of duplicating them.
func PointID(documentID string, pageNumber, chunkIndex int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ChunkID(documentID, pageNumber, chunkIndex)))
	return h.Sum64() & (1<<63 - 1)
}

func (c Chunk) ID() string {
	return ChunkID(c.DocumentID, c.PageNumber, c.Index)
}

func (c Chunk) PointID() uint64 {
	return PointID(c.DocumentID, c.PageNumber, c.Index)
}

// Payload returns the payload stored alongside the chunk vector
func (c Chunk) Payload() ChunkPayload {
	return ChunkPayload{
		ChunkID:    c.ID(),
		DocumentID: c.DocumentID,
		PageNumber: c.PageNumber,
		ChunkIndex: c.Index,
		Text:       c.Text,
	}
}

// ChunkPayload is the metadata stored with each vector
type ChunkPayload struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// Point is a vector with its payload
type Point struct {
	ID      uint64       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload ChunkPayload `json:"payload"`
}

// ScoredPoint is a search hit. Score is cosine similarity, higher is closer.
type ScoredPoint struct {
	ID      uint64       `json:"id"`
	Score   float32      `json:"score"`
	Payload ChunkPayload `json:"payload"`
}

// Passage is a retrieved chunk with its distance to the query.
// Distance is 1 - cosine similarity, lower is closer.
type Passage struct {
	DocumentID string  `json:"document_id"`
	PageNumber int     `json:"page_number"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Distance   float32 `json:"distance"`
}

// PointFilter scopes vector operations to one document.
// Every search, count and delete carries one.
type PointFilter struct {
	DocumentID string `json:"document_id"`
}

// Validate rejects filters that would match the whole collection
func (f PointFilter) Validate() error {
	if f.DocumentID == "" {
		return fmt.Errorf("point filter requires a document_id")
	}
	return nil
}

// DistanceMetric names the similarity function of a collection
type DistanceMetric string

const DistanceCosine DistanceMetric = "cosine"
