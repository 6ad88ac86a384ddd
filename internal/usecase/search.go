package usecase

import (
	"context"
	"fmt"

	"crenews/internal/domain"
	"crenews/internal/port"
)

// Searcher answers free-text similarity queries against one source's
// collection.
type Searcher struct {
	embedder port.Embedder
	index    port.VectorIndex
}

// NewSearcher wires a searcher from its collaborators.
func NewSearcher(embedder port.Embedder, index port.VectorIndex) *Searcher {
	return &Searcher{embedder: embedder, index: index}
}

// Search embeds queryText, queries the source's collection and returns up
// to topK ranked articles in descending similarity order. An empty
// collection yields an empty result, not an error.
func (s *Searcher) Search(ctx context.Context, queryText, source string, topK int) ([]domain.RankedArticle, error) {
	if queryText == "" {
		return nil, domain.ErrInvalidQuery
	}
	if !domain.ValidSource(source) {
		return nil, domain.ErrInvalidSource
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vectors, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	hits, err := s.index.Search(ctx, domain.CollectionName(source), vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}

	results := make([]domain.RankedArticle, len(hits))
	for i, h := range hits {
		results[i] = domain.RankedArticle{
			ID:         h.Payload.ArticleID,
			Title:      h.Payload.Title,
			Link:       h.Payload.Link,
			Summary:    h.Payload.Summary,
			Author:     h.Payload.Author,
			Date:       h.Payload.Date,
			Source:     h.Payload.Source,
			Similarity: h.Score,
		}
	}
	return results, nil
}
