// Package memindex is an in-memory vector index for tests and one-off
// runs. Same contract as the persistent backends.
package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"crenews/internal/domain"
)

type collection struct {
	dimension int
	points    map[int64]domain.Point
}

// Index holds collections of points in memory.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

func (x *Index) EnsureCollection(ctx context.Context, name string, dimension int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if c, ok := x.collections[name]; ok {
		if c.dimension != dimension {
			return fmt.Errorf("%w: collection %s has dimension %d, want %d",
				domain.ErrCollectionSchema, name, c.dimension, dimension)
		}
		return nil
	}
	x.collections[name] = &collection{dimension: dimension, points: make(map[int64]domain.Point)}
	return nil
}

func (x *Index) Upsert(ctx context.Context, name string, points []domain.Point) ([]int64, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to upsert")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	c, ok := x.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}

	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return nil, fmt.Errorf("%w: point %d has dimension %d, want %d",
				domain.ErrCollectionSchema, p.ID, len(p.Vector), c.dimension)
		}
	}
	for _, p := range points {
		c.points[p.ID] = p
	}
	return nil, nil
}

func (x *Index) Search(ctx context.Context, name string, vector []float32, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	c, ok := x.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", name)
	}

	hits := make([]domain.SearchHit, 0, len(c.points))
	for id, p := range c.points {
		hits = append(hits, domain.SearchHit{
			ID:      id,
			Score:   cosineSimilarity(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (x *Index) Count(ctx context.Context, name string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	c, ok := x.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", name)
	}
	return len(c.points), nil
}

func (x *Index) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
