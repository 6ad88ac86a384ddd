package articlestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"crenews/internal/domain"
)

const postgresDDL = `
CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	link TEXT UNIQUE NOT NULL,
	summary TEXT,
	author TEXT,
	date TEXT,
	categories TEXT,
	content TEXT,
	source TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// PostgresStore is the production article store.
type PostgresStore struct {
	store
}

// NewPostgresStore opens a PostgreSQL-backed article store and creates
// the per-source tables if absent.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{store{db: db}}
	if err := s.ensureTables(ctx, postgresDDL); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Fetch returns up to limit articles for the source, ordered by id.
func (s *PostgresStore) Fetch(ctx context.Context, source string, limit, offset int) ([]domain.Article, error) {
	if !domain.ValidSource(source) {
		return nil, domain.ErrInvalidSource
	}

	query := fmt.Sprintf(`
		SELECT id, title, link, summary, author, date, categories, content
		FROM %s
		ORDER BY id
		LIMIT $1 OFFSET $2`, domain.CollectionName(source))

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	return s.fetch(ctx, source, query, limitArg, offset)
}

// Upsert inserts articles, overwriting existing rows on duplicate link.
func (s *PostgresStore) Upsert(ctx context.Context, source string, articles []domain.Article) (int, error) {
	if !domain.ValidSource(source) {
		return 0, domain.ErrInvalidSource
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (title, link, summary, author, date, categories, content, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (link) DO UPDATE SET
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			author = EXCLUDED.author,
			date = EXCLUDED.date,
			categories = EXCLUDED.categories,
			content = EXCLUDED.content,
			source = EXCLUDED.source`, domain.CollectionName(source))

	written := 0
	for _, a := range articles {
		_, err := s.db.ExecContext(ctx, query,
			a.Title, a.Link, a.Summary, a.Author, a.Date, a.Categories, a.Content, source)
		if err != nil {
			return written, fmt.Errorf("upsert article %s: %w", a.Link, err)
		}
		written++
	}
	return written, nil
}
