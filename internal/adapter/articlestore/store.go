// Package articlestore persists scraped articles in a relational store,
// one table per source tag. The embedding pipeline only reads from it;
// the import command feeds its write side.
package articlestore

import (
	"context"
	"database/sql"
	"fmt"

	"crenews/internal/domain"
)

// store carries the pieces shared by both backends. The SQL differs only
// in placeholders and upsert syntax, so each backend supplies those.
type store struct {
	db *sql.DB
}

// ensureTables creates the per-source article tables if absent using the
// given DDL template. Table names come from the fixed source registry,
// never from caller input.
func (s *store) ensureTables(ctx context.Context, ddl string) error {
	for _, src := range domain.Sources() {
		stmt := fmt.Sprintf(ddl, domain.CollectionName(src))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table for %s: %w", src, err)
		}
	}
	return nil
}

// fetch reads articles ordered by insertion (id). limitArg is the
// backend's "no limit" encoding when the caller passed limit <= 0. query
// must select the full column set for one source table.
func (s *store) fetch(ctx context.Context, source, query string, limitArg any, offset int) ([]domain.Article, error) {
	if !domain.ValidSource(source) {
		return nil, domain.ErrInvalidSource
	}

	rows, err := s.db.QueryContext(ctx, query, limitArg, offset)
	if err != nil {
		return nil, fmt.Errorf("query %s articles: %w", source, err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		var summary, author, date, categories, content sql.NullString
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &summary, &author, &date, &categories, &content); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		a.Summary = summary.String
		a.Author = author.String
		a.Date = date.String
		a.Categories = categories.String
		a.Content = content.String
		a.Source = source
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Close closes the database handle.
func (s *store) Close() error {
	return s.db.Close()
}
