package boltindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"crenews/internal/domain"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestEnsureCollection(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, "credaily_articles", 4); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := idx.EnsureCollection(ctx, "credaily_articles", 4); err != nil {
		t.Fatalf("ensure must be idempotent: %v", err)
	}

	err := idx.EnsureCollection(ctx, "credaily_articles", 8)
	if !errors.Is(err, domain.ErrCollectionSchema) {
		t.Errorf("expected ErrCollectionSchema for dimension change, got %v", err)
	}
}

func TestUpsertAndSearch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, "credaily_articles", 2); err != nil {
		t.Fatal(err)
	}

	points := []domain.Point{
		{ID: 1, Vector: []float32{1, 0}, Payload: domain.Payload{ArticleID: 1, Title: "east"}},
		{ID: 2, Vector: []float32{0, 1}, Payload: domain.Payload{ArticleID: 2, Title: "north"}},
		{ID: 3, Vector: []float32{1, 1}, Payload: domain.Payload{ArticleID: 3, Title: "northeast"}},
	}
	if _, err := idx.Upsert(ctx, "credaily_articles", points); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, "credaily_articles", []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != 1 {
		t.Errorf("expected nearest point 1, got %d", hits[0].ID)
	}
	if hits[1].ID != 3 {
		t.Errorf("expected second point 3, got %d", hits[1].ID)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("scores must be non-increasing")
	}
	if hits[0].Payload.Title != "east" {
		t.Errorf("payload lost: %+v", hits[0].Payload)
	}
}

func TestUpsertIdempotentByID(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, "credaily_articles", 2); err != nil {
		t.Fatal(err)
	}

	points := []domain.Point{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0, 1}},
	}
	for i := 0; i < 2; i++ {
		if _, err := idx.Upsert(ctx, "credaily_articles", points); err != nil {
			t.Fatal(err)
		}
	}

	n, err := idx.Count(ctx, "credaily_articles")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("re-upserting the same ids must not duplicate: got %d points", n)
	}
}

func TestSearchTopKBeyondCollectionSize(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, "credaily_articles", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Upsert(ctx, "credaily_articles", []domain.Point{{ID: 1, Vector: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, "credaily_articles", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("oversized topK must not error: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected all available points, got %d", len(hits))
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, "credaily_articles", 2); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, "credaily_articles", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("empty collection must not error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestSearchTieBreakByID(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, "credaily_articles", 2); err != nil {
		t.Fatal(err)
	}
	// Identical vectors score identically; ids decide the order.
	points := []domain.Point{
		{ID: 9, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{1, 0}},
		{ID: 5, Vector: []float32{1, 0}},
	}
	if _, err := idx.Upsert(ctx, "credaily_articles", points); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, "credaily_articles", []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{2, 5, 9}
	for i, w := range want {
		if hits[i].ID != w {
			t.Errorf("hit %d: expected id %d, got %d", i, w, hits[i].ID)
		}
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.EnsureCollection(ctx, "credaily_articles", 2); err != nil {
		t.Fatal(err)
	}

	_, err := idx.Upsert(ctx, "credaily_articles", []domain.Point{{ID: 1, Vector: []float32{1, 0, 0}}})
	if !errors.Is(err, domain.ErrCollectionSchema) {
		t.Errorf("expected ErrCollectionSchema, got %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	idx, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.EnsureCollection(ctx, "credaily_articles", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Upsert(ctx, "credaily_articles", []domain.Point{
		{ID: 1, Vector: []float32{1, 0}, Payload: domain.Payload{ArticleID: 1, Title: "kept"}},
	}); err != nil {
		t.Fatal(err)
	}
	idx.Close()

	idx2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx2.Close()

	hits, err := idx2.Search(ctx, "credaily_articles", []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Payload.Title != "kept" {
		t.Errorf("expected persisted point after reopen, got %+v", hits)
	}
}
