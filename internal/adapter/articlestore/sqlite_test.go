package articlestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"crenews/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "articles.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleArticles(n int) []domain.Article {
	articles := make([]domain.Article, n)
	for i := range articles {
		articles[i] = domain.Article{
			Title:      "Rent growth slows",
			Link:       "https://example.com/" + string(rune('a'+i)),
			Summary:    "Rents flattened in Q2.",
			Author:     "Jane Doe",
			Date:       "June 3, 2025",
			Categories: "market,rent",
			Content:    "Full article body.",
		}
	}
	return articles
}

func TestUpsertAndFetch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Upsert(ctx, domain.SourceCREDaily, sampleArticles(3))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows written, got %d", n)
	}

	articles, err := s.Fetch(ctx, domain.SourceCREDaily, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}
	for i := 1; i < len(articles); i++ {
		if articles[i].ID <= articles[i-1].ID {
			t.Error("articles must come back in insertion order")
		}
	}
	if articles[0].Source != domain.SourceCREDaily {
		t.Errorf("expected source tag filled in, got %q", articles[0].Source)
	}
	if articles[0].Content != "Full article body." {
		t.Errorf("content lost: %q", articles[0].Content)
	}
}

func TestUpsertOverwritesOnDuplicateLink(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := domain.Article{Title: "v1", Link: "https://example.com/x", Content: "old"}
	if _, err := s.Upsert(ctx, domain.SourceCREDaily, []domain.Article{a}); err != nil {
		t.Fatal(err)
	}

	a.Title = "v2"
	a.Content = "new"
	if _, err := s.Upsert(ctx, domain.SourceCREDaily, []domain.Article{a}); err != nil {
		t.Fatal(err)
	}

	articles, err := s.Fetch(ctx, domain.SourceCREDaily, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 1 {
		t.Fatalf("duplicate link must overwrite, not insert: got %d rows", len(articles))
	}
	if articles[0].Title != "v2" || articles[0].Content != "new" {
		t.Errorf("expected overwritten row, got %+v", articles[0])
	}
}

func TestFetchLimitAndOffset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, domain.SourceMultiHousing, sampleArticles(5)); err != nil {
		t.Fatal(err)
	}

	page1, err := s.Fetch(ctx, domain.SourceMultiHousing, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(page1))
	}

	page2, err := s.Fetch(ctx, domain.SourceMultiHousing, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(page2))
	}
	if page2[0].ID <= page1[1].ID {
		t.Error("pages must not overlap")
	}
}

func TestFetchUnknownSource(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Fetch(context.Background(), "bloomberg", 10, 0)
	if !errors.Is(err, domain.ErrInvalidSource) {
		t.Errorf("expected ErrInvalidSource, got %v", err)
	}
}

func TestFetchEmptySource(t *testing.T) {
	s := openTestStore(t)

	articles, err := s.Fetch(context.Background(), domain.SourceMultifamilyDive, 10, 0)
	if err != nil {
		t.Fatalf("empty table must not error: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("expected no articles, got %d", len(articles))
	}
}

func TestSourcesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, domain.SourceCREDaily, sampleArticles(2)); err != nil {
		t.Fatal(err)
	}

	articles, err := s.Fetch(ctx, domain.SourceMultiHousing, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(articles) != 0 {
		t.Errorf("sources must not leak across tables, got %d rows", len(articles))
	}
}
