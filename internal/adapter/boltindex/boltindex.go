// Package boltindex is a local, file-backed vector index. It implements
// the same collection contract as the Qdrant adapter so the pipeline can
// run without an external index server. Brute-force search; fine for the
// article counts the scrapers produce.
package boltindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"crenews/internal/domain"
)

var bucketMeta = []byte("meta")

// Index is a bbolt-backed vector index. One bucket per collection, point
// ids as big-endian keys so iteration order matches id order.
type Index struct {
	db *bbolt.DB
	mu sync.RWMutex
	// vectors caches points per collection for fast search.
	vectors map[string]map[int64]entry
}

type entry struct {
	vector  []float32
	payload domain.Payload
}

type storedPoint struct {
	Vector  []float32      `json:"v"`
	Payload domain.Payload `json:"p"`
}

type collectionMeta struct {
	Dimension int    `json:"dimension"`
	Distance  string `json:"distance"`
}

// Open opens (creating if needed) the index file at path.
func Open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create meta bucket: %w", err)
	}

	idx := &Index{
		db:      db,
		vectors: make(map[string]map[int64]entry),
	}
	if err := idx.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	return idx, nil
}

func (x *Index) loadAll() error {
	return x.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		return meta.ForEach(func(name, _ []byte) error {
			b := tx.Bucket(name)
			if b == nil {
				return nil
			}
			cache := make(map[int64]entry)
			err := b.ForEach(func(k, v []byte) error {
				var stored storedPoint
				if err := json.Unmarshal(v, &stored); err != nil {
					return nil // skip corrupted entries
				}
				cache[decodeID(k)] = entry{vector: stored.Vector, payload: stored.Payload}
				return nil
			})
			if err != nil {
				return err
			}
			x.vectors[string(name)] = cache
			return nil
		})
	})
}

// EnsureCollection creates the collection bucket if absent and verifies
// the recorded dimension if present.
func (x *Index) EnsureCollection(ctx context.Context, name string, dimension int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)

		if data := meta.Get([]byte(name)); data != nil {
			var m collectionMeta
			if err := json.Unmarshal(data, &m); err != nil {
				return fmt.Errorf("parse collection meta: %w", err)
			}
			if m.Dimension != dimension {
				return fmt.Errorf("%w: collection %s has dimension %d, want %d",
					domain.ErrCollectionSchema, name, m.Dimension, dimension)
			}
			return nil
		}

		data, err := json.Marshal(collectionMeta{Dimension: dimension, Distance: "cosine"})
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(name), data); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
		if _, ok := x.vectors[name]; !ok {
			x.vectors[name] = make(map[int64]entry)
		}
		return nil
	})
}

// Upsert writes points into the collection, overwriting by id.
func (x *Index) Upsert(ctx context.Context, collection string, points []domain.Point) ([]int64, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to upsert")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	cache, ok := x.vectors[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}

	dimension, err := x.collectionDimension(collection)
	if err != nil {
		return nil, err
	}

	err = x.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("collection bucket %s not found", collection)
		}

		for _, p := range points {
			if len(p.Vector) != dimension {
				return fmt.Errorf("%w: point %d has dimension %d, want %d",
					domain.ErrCollectionSchema, p.ID, len(p.Vector), dimension)
			}

			data, err := json.Marshal(storedPoint{Vector: p.Vector, Payload: p.Payload})
			if err != nil {
				return err
			}
			if err := b.Put(encodeID(p.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range points {
		cache[p.ID] = entry{vector: p.Vector, payload: p.Payload}
	}
	return nil, nil
}

// Search returns up to topK nearest points by cosine similarity, ordered
// by descending score with ascending id breaking ties.
func (x *Index) Search(ctx context.Context, collection string, vector []float32, topK int) ([]domain.SearchHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	cache, ok := x.vectors[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	if len(cache) == 0 {
		return nil, nil
	}

	hits := make([]domain.SearchHit, 0, len(cache))
	for id, e := range cache {
		hits = append(hits, domain.SearchHit{
			ID:      id,
			Score:   cosineSimilarity(vector, e.vector),
			Payload: e.payload,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of points in the collection.
func (x *Index) Count(ctx context.Context, collection string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	cache, ok := x.vectors[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s does not exist", collection)
	}
	return len(cache), nil
}

// Close closes the underlying database file.
func (x *Index) Close() error {
	return x.db.Close()
}

// collectionDimension reads the pinned dimension; callers hold the lock.
func (x *Index) collectionDimension(collection string) (int, error) {
	var m collectionMeta
	err := x.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(collection))
		if data == nil {
			return fmt.Errorf("collection %s has no metadata", collection)
		}
		return json.Unmarshal(data, &m)
	})
	if err != nil {
		return 0, err
	}
	return m.Dimension, nil
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
