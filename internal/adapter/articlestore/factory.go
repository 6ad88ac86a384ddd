package articlestore

import (
	"fmt"
	"strings"

	"crenews/internal/port"
)

// New creates an article store based on the DSN.
//   - postgres:// or postgresql://: PostgreSQL
//   - empty: SQLite at data/articles.db
//   - anything else: SQLite at the given path
func New(dsn string) (port.ArticleStore, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err := NewPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	}

	if dsn == "" {
		dsn = "data/articles.db"
	}
	s, err := NewSQLiteStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return s, nil
}
