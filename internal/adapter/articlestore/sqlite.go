package articlestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"crenews/internal/domain"
)

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
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

// SQLiteStore is a file-backed article store for local runs and tests.
type SQLiteStore struct {
	store
}

// NewSQLiteStore opens a SQLite-backed article store at the given path
// (":memory:" works) and creates the per-source tables if absent.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{store{db: db}}
	if err := s.ensureTables(context.Background(), sqliteDDL); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Fetch returns up to limit articles for the source, ordered by id.
func (s *SQLiteStore) Fetch(ctx context.Context, source string, limit, offset int) ([]domain.Article, error) {
	if !domain.ValidSource(source) {
		return nil, domain.ErrInvalidSource
	}

	query := fmt.Sprintf(`
		SELECT id, title, link, summary, author, date, categories, content
		FROM %s
		ORDER BY id
		LIMIT ? OFFSET ?`, domain.CollectionName(source))

	// SQLite treats a negative limit as "no limit".
	if limit <= 0 {
		limit = -1
	}
	return s.fetch(ctx, source, query, limit, offset)
}

// Upsert inserts articles, overwriting existing rows on duplicate link.
func (s *SQLiteStore) Upsert(ctx context.Context, source string, articles []domain.Article) (int, error) {
	if !domain.ValidSource(source) {
		return 0, domain.ErrInvalidSource
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (title, link, summary, author, date, categories, content, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (link) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			author = excluded.author,
			date = excluded.date,
			categories = excluded.categories,
			content = excluded.content,
			source = excluded.source`, domain.CollectionName(source))

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
