package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crenews/internal/domain"
)

// newEmbeddingServer returns a server that echoes one vector per input,
// encoding the batch call number in the first component so tests can
// verify ordering across splits.
func newEmbeddingServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		type data struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []data `json:"data"`
		}{}
		for i, text := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(len(text))
			resp.Data = append(resp.Data, data{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbedder(t *testing.T, baseURL string, opts Options) *OpenAIEmbedder {
	t.Helper()
	if opts.Dimension == 0 {
		opts.Dimension = 4
	}
	e, err := NewOpenAIEmbedder(baseURL, "test-key", "text-embedding-3-small", opts)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEmbedBatchSplitting(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, 4, &calls)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, Options{MaxBatch: 10})

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vectors) != 25 {
		t.Fatalf("expected 25 vectors, got %d", len(vectors))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 provider calls for 25 texts with ceiling 10, got %d", got)
	}
	// Original order must survive the splits.
	for i, v := range vectors {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: got length marker %f, want %d", i, v[0], i+1)
		}
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	e := newTestEmbedder(t, "http://unused", Options{})
	if _, err := e.Embed(context.Background(), nil); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestEmbedTruncation(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, 4, &calls)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, Options{MaxChars: 100})

	vectors, err := e.Embed(context.Background(), []string{strings.Repeat("y", 5000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors[0][0] != 100 {
		t.Errorf("expected input truncated to 100 chars, server saw %f", vectors[0][0])
	}
}

func TestEmbedRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"embedding":[1,0,0,0],"index":0}]}`)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, Options{})

	start := time.Now()
	vectors, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls (2 rate-limited + 1 success), got %d", got)
	}
	// Two backoff waits: 500ms + 1s.
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("expected backoff before retries, elapsed only %v", elapsed)
	}
}

func TestEmbedAuthErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, Options{})

	_, err := e.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("expected error on auth failure")
	}
	if domain.IsRetryable(err) {
		t.Error("auth errors must not be classified retryable")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("auth failure must not be retried, got %d calls", got)
	}
}

func TestEmbedRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, Options{MaxRetries: 2})

	_, err := e.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 1 call + 2 retries, got %d", got)
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[1,2],"index":0}]}`)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, Options{Dimension: 4})

	if _, err := e.Embed(context.Background(), []string{"hello"}); err == nil {
		t.Error("expected error for wrong vector dimension")
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder("", "", "text-embedding-3-small", Options{}); err == nil {
		t.Error("expected error for empty API key")
	}
}
