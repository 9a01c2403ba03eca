package vector

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"aiflow/internal/util"
)

// Chunk is one retrievable span of reference-document text with its
// embedding. Metadata carries source title, category and chunk index for
// prompt formatting.
type Chunk struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Embedding  []float32         `json:"embedding"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Result pairs a stored chunk with its similarity score for one query.
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Store is an in-memory embedding similarity index over reference-document
// chunks. Collections here are small (dozens to low thousands of chunks),
// so queries are a linear cosine scan; no ANN structure is warranted.
//
// Add and Remove serialize behind the write lock; concurrent queries share
// the read lock and proceed in parallel.
type Store struct {
	mu     sync.RWMutex
	dim    int
	chunks []Chunk
}

// NewStore creates an empty store. dim fixes the embedding dimension up
// front; pass 0 to let the first Add establish it.
func NewStore(dim int) *Store {
	return &Store{dim: dim}
}

// Add appends chunks to the collection, keyed by document for later bulk
// removal. All embeddings must match the collection dimension: a mismatch
// means the caller mixed embedding models, and the whole call is rejected
// before anything is inserted.
func (s *Store) Add(documentID string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s for document %s has an empty embedding: %w",
				c.ChunkID, documentID, util.ErrDimensionMismatch)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %s for document %s has dimension %d, collection expects %d: %w",
				c.ChunkID, documentID, len(c.Embedding), dim, util.ErrDimensionMismatch)
		}
	}
	s.dim = dim

	for _, c := range chunks {
		c.DocumentID = documentID
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Remove drops every chunk belonging to documentID. Removing an unknown
// document is a no-op.
func (s *Store) Remove(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
}

// Query scores every stored chunk against queryVec by cosine similarity
// and returns those at or above threshold, best first, at most topK. Ties
// rank by insertion order, so identical inputs always produce identical
// output. Fewer than topK qualifying chunks return fewer results; an
// empty collection returns none.
func (s *Store) Query(queryVec []float32, topK int, threshold float64) []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0, topK)
	for _, c := range s.chunks {
		score := Cosine(queryVec, c.Embedding)
		if score >= threshold {
			results = append(results, Result{Chunk: c, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// ReplaceAll rebuilds the collection from scratch in the given document
// order, enforcing the dimension invariant across everything loaded. On
// error the previous contents are kept.
func (s *Store) ReplaceAll(docs []DocumentChunks) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := 0
	rebuilt := make([]Chunk, 0)
	for _, doc := range docs {
		for _, c := range doc.Chunks {
			if len(c.Embedding) == 0 {
				return fmt.Errorf("chunk %s for document %s has an empty embedding: %w",
					c.ChunkID, doc.DocumentID, util.ErrDimensionMismatch)
			}
			if dim == 0 {
				dim = len(c.Embedding)
			}
			if len(c.Embedding) != dim {
				return fmt.Errorf("chunk %s for document %s has dimension %d, collection expects %d: %w",
					c.ChunkID, doc.DocumentID, len(c.Embedding), dim, util.ErrDimensionMismatch)
			}
			c.DocumentID = doc.DocumentID
			rebuilt = append(rebuilt, c)
		}
	}
	if dim == 0 {
		dim = s.dim
	}
	s.dim = dim
	s.chunks = rebuilt
	return nil
}

// Len reports the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Dim reports the collection's embedding dimension, 0 if not yet fixed.
func (s *Store) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Cosine computes cosine similarity between two vectors, 0 if either has
// zero magnitude. Vectors of different length score 0 rather than reading
// out of bounds; Add prevents that case inside a collection.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
