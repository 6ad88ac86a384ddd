package domain

// Article is one scraped news article as stored in the relational store.
// Articles are produced by the scrapers and are read-only to the
// embedding pipeline.
type Article struct {
	ID         int64
	Title      string
	Link       string
	Summary    string
	Author     string
	Date       string
	Categories string
	Content    string
	Source     string
}

// EmbeddingText builds the text that gets embedded for the article.
// Full content is preferred; when content is empty the summary stands in,
// since an empty embedding input is meaningless.
func (a Article) EmbeddingText() string {
	body := a.Content
	if body == "" {
		body = a.Summary
	}
	if a.Title == "" {
		return body
	}
	if body == "" {
		return a.Title
	}
	return a.Title + "\n\n" + body
}

// MaxPayloadSummary bounds the summary copied into a point payload.
const MaxPayloadSummary = 500

// Point is a single indexed record: id + vector + metadata payload.
// The id is the article's storage id, so re-embedding the same article
// overwrites its point instead of duplicating it.
type Point struct {
	ID      int64
	Vector  []float32
	Payload Payload
}

// Payload is the metadata stored alongside a vector, enough to render
// search results without a second trip to the relational store.
type Payload struct {
	ArticleID  int64  `json:"article_id"`
	Title      string `json:"title"`
	Link       string `json:"link"`
	Summary    string `json:"summary"`
	Author     string `json:"author,omitempty"`
	Date       string `json:"date,omitempty"`
	Categories string `json:"categories,omitempty"`
	Source     string `json:"source"`
}

// NewPoint builds an indexed point for an article. The summary stored in
// the payload is capped so oversized articles do not bloat the index.
func NewPoint(a Article, vector []float32) Point {
	summary := a.Summary
	if len(summary) > MaxPayloadSummary {
		summary = summary[:MaxPayloadSummary]
	}
	return Point{
		ID:     a.ID,
		Vector: vector,
		Payload: Payload{
			ArticleID:  a.ID,
			Title:      a.Title,
			Link:       a.Link,
			Summary:    summary,
			Author:     a.Author,
			Date:       a.Date,
			Categories: a.Categories,
			Source:     a.Source,
		},
	}
}

// SearchHit is a raw nearest-neighbor result from a vector index.
type SearchHit struct {
	ID      int64
	Score   float64
	Payload Payload
}

// RankedArticle is one similarity search result as shown to the caller.
type RankedArticle struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Link       string  `json:"link"`
	Summary    string  `json:"summary"`
	Author     string  `json:"author,omitempty"`
	Date       string  `json:"date,omitempty"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// RunSummary accumulates the outcome of one pipeline run.
type RunSummary struct {
	Source    string
	Batches   int
	Processed int
	Failed    int
	FailedIDs []int64
	Errors    []string
}
