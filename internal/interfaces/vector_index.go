package interfaces

import (
	"context"

	"github.com/ternarybob/docgpt/internal/models"
)

// VectorIndex stores chunk vectors in a single collection.
// Search, Delete and Count always carry a document filter.
type VectorIndex interface {
	// EnsureCollection creates the collection and its document_id index.
	// An existing collection with a different dimension is dropped and
	// recreated, losing every stored point. Returns true when that happened.
	EnsureCollection(ctx context.Context, dimension int, metric models.DistanceMetric) (bool, error)

	// Upsert writes points, replacing any with the same id
	Upsert(ctx context.Context, points []models.Point) error

	// Search returns up to limit points matching filter, highest score first
	Search(ctx context.Context, vector []float32, filter models.PointFilter, limit int) ([]models.ScoredPoint, error)

	Delete(ctx context.Context, filter models.PointFilter) error
	Count(ctx context.Context, filter models.PointFilter) (int, error)

	// Dimension returns the collection dimension, or 0 before EnsureCollection
	Dimension() int

	Close() error
}
