package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crenews/internal/domain"
	"crenews/internal/port"
)

const (
	// DefaultBatchSize bounds per-batch memory and embedding cost.
	DefaultBatchSize  = 10
	DefaultMaxRetries = 3

	retryBaseDelay = 500 * time.Millisecond
)

// BatchProgress is reported after every batch.
type BatchProgress struct {
	Batch     int
	Processed int
	Failed    int
}

// Pipeline drives the embed-and-index flow for one source: fetch a batch
// of articles, embed their text, upsert the points, report, repeat until
// the source is exhausted or the row limit is reached.
type Pipeline struct {
	source     port.ArticleSource
	embedder   port.Embedder
	index      port.VectorIndex
	batchSize  int
	maxRetries int
	onBatch    func(BatchProgress)

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// PipelineOptions tunes a pipeline run.
type PipelineOptions struct {
	BatchSize  int
	MaxRetries int
	// OnBatch, when set, is called after each batch with cumulative
	// counts. Called from the run's goroutine only.
	OnBatch func(BatchProgress)
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(source port.ArticleSource, embedder port.Embedder, index port.VectorIndex, opts PipelineOptions) *Pipeline {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Pipeline{
		source:     source,
		embedder:   embedder,
		index:      index,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		onBatch:    opts.OnBatch,
		sleep:      sleepCtx,
	}
}

// Run processes up to limit articles from the source (limit <= 0 means
// all). The summary is returned even when the run aborts on a fatal
// error; cancellation is honored between batches, never mid-batch.
func (p *Pipeline) Run(ctx context.Context, source string, limit int) (domain.RunSummary, error) {
	summary := domain.RunSummary{Source: source}

	if !domain.ValidSource(source) {
		return summary, domain.ErrInvalidSource
	}

	collection := domain.CollectionName(source)
	if err := p.index.EnsureCollection(ctx, collection, p.embedder.Dimension()); err != nil {
		return summary, err
	}

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batchLimit := p.batchSize
		if limit > 0 && limit-offset < batchLimit {
			batchLimit = limit - offset
		}
		if batchLimit <= 0 {
			return summary, nil
		}

		articles, err := p.source.Fetch(ctx, source, batchLimit, offset)
		if err != nil {
			return summary, fmt.Errorf("fetch batch at offset %d: %w", offset, err)
		}
		if len(articles) == 0 {
			return summary, nil
		}

		summary.Batches++
		if err := p.processBatch(ctx, collection, articles, &summary); err != nil {
			return summary, err
		}

		if p.onBatch != nil {
			p.onBatch(BatchProgress{
				Batch:     summary.Batches,
				Processed: summary.Processed,
				Failed:    summary.Failed,
			})
		}

		offset += len(articles)
		if len(articles) < batchLimit {
			return summary, nil
		}
	}
}

// processBatch embeds and upserts one batch. Transient failures retry the
// whole batch with backoff; on exhaustion the batch is marked failed and
// the run moves on. Fatal errors propagate and abort the run.
func (p *Pipeline) processBatch(ctx context.Context, collection string, articles []domain.Article, summary *domain.RunSummary) error {
	// Articles with nothing to embed are skipped and counted as failed.
	batch := articles[:0:0]
	for _, a := range articles {
		if a.EmbeddingText() == "" {
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, a.ID)
			continue
		}
		batch = append(batch, a)
	}
	if len(batch) == 0 {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, retryBaseDelay<<(attempt-1)); err != nil {
				return err
			}
		}

		failed, err := p.embedAndUpsert(ctx, collection, batch)
		if err == nil {
			failedSet := make(map[int64]bool, len(failed))
			for _, id := range failed {
				failedSet[id] = true
			}
			for _, a := range batch {
				if failedSet[a.ID] {
					summary.Failed++
					summary.FailedIDs = append(summary.FailedIDs, a.ID)
				} else {
					summary.Processed++
				}
			}
			return nil
		}
		if !domain.IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	// Retries exhausted: one bad batch must not stop the rest of the
	// source.
	for _, a := range batch {
		summary.Failed++
		summary.FailedIDs = append(summary.FailedIDs, a.ID)
	}
	summary.Errors = append(summary.Errors, fmt.Sprintf("batch %d: %v", summary.Batches, lastErr))
	return nil
}

func (p *Pipeline) embedAndUpsert(ctx context.Context, collection string, batch []domain.Article) ([]int64, error) {
	texts := make([]string, len(batch))
	for i, a := range batch {
		texts[i] = a.EmbeddingText()
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d articles", len(vectors), len(batch))
	}

	points := make([]domain.Point, len(batch))
	for i, a := range batch {
		points[i] = domain.NewPoint(a, vectors[i])
	}

	return p.index.Upsert(ctx, collection, points)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Aborted reports whether the run ended on a fatal (non-retryable,
// non-cancellation) pipeline error.
func Aborted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
