package port

import (
	"context"

	"crenews/internal/domain"
)

// ArticleSource reads article rows from the relational store.
type ArticleSource interface {
	// Fetch returns up to limit articles for the source tag, starting at
	// offset, ordered by storage insertion order. limit <= 0 means no
	// limit. An unknown tag fails with domain.ErrInvalidSource; no rows
	// matching is an empty, non-error result.
	Fetch(ctx context.Context, source string, limit, offset int) ([]domain.Article, error)
}

// ArticleStore is the full relational store: the read side consumed by the
// pipeline plus the write side fed by the scrapers.
type ArticleStore interface {
	ArticleSource

	// Upsert inserts articles, overwriting existing rows on duplicate
	// link. Returns the number of rows written.
	Upsert(ctx context.Context, source string, articles []domain.Article) (int, error)

	// Close releases the database handle.
	Close() error
}
