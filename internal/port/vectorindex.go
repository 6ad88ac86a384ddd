package port

import (
	"context"

	"crenews/internal/domain"
)

// VectorIndex stores and searches embedding vectors, partitioned into
// named collections of one fixed dimension and metric.
type VectorIndex interface {
	// EnsureCollection creates the collection if absent and verifies the
	// dimension and metric if present. A mismatch fails with
	// domain.ErrCollectionSchema.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// Upsert writes points into the collection, batched internally.
	// Writes are idempotent by point id. The returned slice holds the
	// ids of points that could not be written after retries; points in
	// successfully written sub-batches are never discarded.
	Upsert(ctx context.Context, collection string, points []domain.Point) ([]int64, error)

	// Search returns up to topK nearest points ordered by descending
	// similarity score, ties broken by ascending point id. Asking for
	// more points than the collection holds returns all of them.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.SearchHit, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases the underlying connection or file handle.
	Close() error
}
