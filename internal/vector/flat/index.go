// Package flat implements a brute-force inner-product nearest-neighbor index
// persisted as a single file. Both stored and query vectors are expected to be
// L2-normalized, so inner product equals cosine similarity.
package flat

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Hit is one search result. Row is the insertion offset of the matched
// vector; padding entries carry Row == -1.
type Hit struct {
	Score float32
	Row   int
}

type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

func New() *Index {
	return &Index{}
}

// Rebuild atomically replaces all contents. Row offsets are assigned by slice
// position, so callers control the index/metadata correspondence by batch
// order alone.
func (ix *Index) Rebuild(vectors [][]float32) error {
	dim := 0
	for i, vec := range vectors {
		if i == 0 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), dim)
		}
	}

	copied := make([][]float32, len(vectors))
	for i, vec := range vectors {
		row := make([]float32, len(vec))
		copy(row, vec)
		copied[i] = row
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dim = dim
	ix.vectors = copied
	return nil
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Search returns exactly k hits ordered by descending inner product, ties
// broken by lowest row. When the index holds fewer than k vectors the tail is
// padded with Row == -1 entries.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.vectors) > 0 && len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), ix.dim)
	}

	hits := make([]Hit, 0, len(ix.vectors))
	for row, vec := range ix.vectors {
		hits = append(hits, Hit{Score: dot(vec, query), Row: row})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	for len(hits) < k {
		hits = append(hits, Hit{Score: 0, Row: -1})
	}

	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize scales vec to unit length in place. Zero vectors are left
// untouched to avoid division by zero.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
