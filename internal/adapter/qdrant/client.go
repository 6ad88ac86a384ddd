// Package qdrant is a thin REST client for the Qdrant vector database,
// covering the collection and point operations the pipeline needs.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"crenews/internal/domain"
)

const (
	// DefaultBatchSize bounds points per upsert call.
	DefaultBatchSize  = 100
	DefaultMaxRetries = 3

	distanceCosine = "Cosine"

	retryBaseDelay = 500 * time.Millisecond
)

// Client talks to a Qdrant server over its REST API.
type Client struct {
	baseURL    string
	apiKey     string
	batchSize  int
	maxRetries int
	client     *http.Client
}

// Options tunes the client beyond its defaults.
type Options struct {
	APIKey     string
	BatchSize  int
	MaxRetries int
	Timeout    time.Duration
}

// NewClient creates a Qdrant client for the given base URL
// (e.g. "http://localhost:6333").
func NewClient(baseURL string, opts Options) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("qdrant URL is empty")
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     opts.APIKey,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type collectionInfo struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors vectorParams `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
	Status json.RawMessage `json:"status"`
}

// EnsureCollection creates the collection if absent and verifies its
// dimension and metric if present.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	var info collectionInfo
	status, err := c.doJSON(ctx, http.MethodGet, "/collections/"+name, nil, &info)
	if err != nil {
		return err
	}

	if status == http.StatusOK {
		params := info.Result.Config.Params.Vectors
		if params.Size != dimension || params.Distance != distanceCosine {
			return fmt.Errorf("%w: collection %s has size=%d distance=%s, want size=%d distance=%s",
				domain.ErrCollectionSchema, name, params.Size, params.Distance, dimension, distanceCosine)
		}
		return nil
	}

	body := map[string]any{
		"vectors": vectorParams{Size: dimension, Distance: distanceCosine},
	}
	status, err = c.doJSON(ctx, http.MethodPut, "/collections/"+name, body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("create collection %s: status %d", name, status)
	}
	return nil
}

type upsertPoint struct {
	ID      int64          `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload domain.Payload `json:"payload"`
}

// Upsert writes points in sub-batches. Transient sub-batch failures are
// retried with backoff; on exhaustion the sub-batch's ids are recorded as
// failed and the remaining sub-batches still get written.
func (c *Client) Upsert(ctx context.Context, collection string, points []domain.Point) ([]int64, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to upsert")
	}

	var failed []int64
	for i := 0; i < len(points); i += c.batchSize {
		end := i + c.batchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[i:end]

		if err := c.upsertBatch(ctx, collection, batch); err != nil {
			if !domain.IsRetryable(err) {
				return failed, err
			}
			for _, p := range batch {
				failed = append(failed, p.ID)
			}
		}
	}
	return failed, nil
}

func (c *Client) upsertBatch(ctx context.Context, collection string, points []domain.Point) error {
	payload := make([]upsertPoint, len(points))
	for i, p := range points {
		payload[i] = upsertPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	body := map[string]any{"points": payload}

	return c.withRetry(ctx, func() error {
		status, err := c.doJSON(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil)
		if err != nil {
			return err
		}
		return c.checkStatus(status, "upsert points")
	})
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		ID      int64          `json:"id"`
		Score   float64        `json:"score"`
		Payload domain.Payload `json:"payload"`
	} `json:"result"`
}

// Search returns up to topK nearest points ordered by descending score,
// ties broken by ascending point id.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	body := searchRequest{Vector: vector, Limit: topK, WithPayload: true}

	var resp searchResponse
	err := c.withRetry(ctx, func() error {
		status, err := c.doJSON(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &resp)
		if err != nil {
			return err
		}
		return c.checkStatus(status, "search points")
	})
	if err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, len(resp.Result))
	for i, r := range resp.Result {
		hits[i] = domain.SearchHit{ID: r.ID, Score: r.Score, Payload: r.Payload}
	}

	// Qdrant orders by score already; the id tie-break keeps equal-score
	// results deterministic across runs.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	return hits, nil
}

// Count returns the number of points in the collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	var info collectionInfo
	status, err := c.doJSON(ctx, http.MethodGet, "/collections/"+collection, nil, &info)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("get collection %s: status %d", collection, status)
	}
	return info.Result.PointsCount, nil
}

// Close is a no-op; the client holds no persistent connection state.
func (c *Client) Close() error {
	return nil
}

// withRetry runs fn with capped exponential backoff on retryable errors.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return domain.Retryable(fmt.Errorf("giving up after %d retries: %w", c.maxRetries, lastErr))
}

// doJSON issues one request and decodes the response body into out when
// provided. 404 is returned as a plain status, not an error, so callers
// can branch on absence.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, domain.Retryable(fmt.Errorf("qdrant request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, domain.Retryable(fmt.Errorf("read qdrant response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return resp.StatusCode, domain.Retryable(fmt.Errorf("qdrant returned status %d: %s", resp.StatusCode, preview(data)))
	}

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("parse qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) checkStatus(status int, op string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: collection not found", op)
	default:
		return fmt.Errorf("%s: status %d", op, status)
	}
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
