package vector

import (
	"errors"
	"math"
	"testing"

	"aiflow/internal/util"
)

func chunk(id string, embedding ...float32) Chunk {
	return Chunk{ChunkID: id, Text: "text for " + id, Embedding: embedding}
}

func TestQueryOrthogonalVectors(t *testing.T) {
	s := NewStore(2)
	if err := s.Add("doc1", []Chunk{
		chunk("c1", 1, 0),
		chunk("c2", 0, 1),
	}); err != nil {
		t.Fatal(err)
	}

	results := s.Query([]float32{1, 0}, 2, 0)
	if len(results) != 2 {
		t.Fatalf("expected 2 results got %d", len(results))
	}
	if results[0].Chunk.ChunkID != "c1" || math.Abs(results[0].Score-1.0) > 1e-9 {
		t.Fatalf("expected c1 with score 1.0 first, got %s score %v", results[0].Chunk.ChunkID, results[0].Score)
	}
	if results[1].Chunk.ChunkID != "c2" || results[1].Score != 0 {
		t.Fatalf("expected c2 with score 0 second, got %s score %v", results[1].Chunk.ChunkID, results[1].Score)
	}
}

func TestQueryEmptyStore(t *testing.T) {
	s := NewStore(3)
	if got := s.Query([]float32{1, 0, 0}, 5, 0); len(got) != 0 {
		t.Fatalf("expected no results from empty store, got %d", len(got))
	}
}

func TestQueryThresholdAndTopK(t *testing.T) {
	s := NewStore(3)
	if err := s.Add("pumps", []Chunk{chunk("pump-specs", 1, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("vessels", []Chunk{chunk("vessel-specs", 0, 1, 0)}); err != nil {
		t.Fatal(err)
	}

	results := s.Query([]float32{0.9, 0.1, 0}, 1, 0.5)
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result got %d", len(results))
	}
	if results[0].Chunk.ChunkID != "pump-specs" {
		t.Fatalf("expected pump chunk, got %s", results[0].Chunk.ChunkID)
	}
	if results[0].Score < 0.5 {
		t.Fatalf("score below threshold leaked through: %v", results[0].Score)
	}
}

func TestQueryDeterministicTieBreak(t *testing.T) {
	s := NewStore(2)
	// Same direction, same score: insertion order must decide.
	if err := s.Add("d1", []Chunk{chunk("first", 1, 0), chunk("second", 2, 0)}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		results := s.Query([]float32{1, 0}, 2, 0)
		if len(results) != 2 || results[0].Chunk.ChunkID != "first" || results[1].Chunk.ChunkID != "second" {
			t.Fatalf("tie-break not stable on run %d: %+v", i, results)
		}
	}
}

func TestQueryZeroMagnitude(t *testing.T) {
	s := NewStore(2)
	if err := s.Add("d1", []Chunk{chunk("zero", 0, 0), chunk("unit", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	results := s.Query([]float32{1, 0}, 10, 0)
	for _, r := range results {
		if r.Chunk.ChunkID == "zero" && r.Score != 0 {
			t.Fatalf("zero-magnitude chunk scored %v", r.Score)
		}
	}
	if got := s.Query([]float32{0, 0}, 10, 0.1); len(got) != 0 {
		t.Fatalf("zero query vector should score 0 everywhere, got %d hits", len(got))
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	s := NewStore(3)
	err := s.Add("d1", []Chunk{chunk("ok", 1, 0, 0), chunk("bad", 1, 0)})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if !errors.Is(err, util.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	// Nothing from the failed call may be inserted.
	if s.Len() != 0 {
		t.Fatalf("partial insert after mismatch: %d chunks", s.Len())
	}
}

func TestAddRejectsEmptyEmbedding(t *testing.T) {
	// An empty embedding at the head of the first Add must not slip in
	// while the collection dimension is still unestablished.
	s := NewStore(0)
	err := s.Add("d1", []Chunk{chunk("empty"), chunk("threedim", 1, 2, 3)})
	if !errors.Is(err, util.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("empty-embedding chunk inserted: %d chunks", s.Len())
	}
	if s.Dim() != 0 {
		t.Fatalf("failed Add fixed the dimension: %d", s.Dim())
	}

	// Same with an established dimension.
	if err := s.Add("d1", []Chunk{chunk("c1", 1, 2, 3)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("d2", []Chunk{chunk("empty")}); !errors.Is(err, util.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 chunk, got %d", s.Len())
	}
}

func TestAddEstablishesDimension(t *testing.T) {
	s := NewStore(0)
	if err := s.Add("d1", []Chunk{chunk("c1", 1, 2, 3)}); err != nil {
		t.Fatal(err)
	}
	if s.Dim() != 3 {
		t.Fatalf("dim = %d, want 3", s.Dim())
	}
	if err := s.Add("d2", []Chunk{chunk("c2", 1, 2)}); !errors.Is(err, util.ErrDimensionMismatch) {
		t.Fatalf("expected mismatch against established dimension, got %v", err)
	}
}

func TestRemoveIdempotent(t *testing.T) {
	s := NewStore(2)
	if err := s.Add("keep", []Chunk{chunk("k1", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("drop", []Chunk{chunk("d1", 0, 1), chunk("d2", 1, 1)}); err != nil {
		t.Fatal(err)
	}

	s.Remove("drop")
	if s.Len() != 1 {
		t.Fatalf("expected 1 chunk after remove, got %d", s.Len())
	}
	s.Remove("drop")
	s.Remove("never-existed")
	if s.Len() != 1 {
		t.Fatalf("repeat remove changed contents: %d", s.Len())
	}
	results := s.Query([]float32{1, 0}, 10, 0)
	if len(results) != 1 || results[0].Chunk.ChunkID != "k1" {
		t.Fatalf("surviving chunk wrong: %+v", results)
	}
}

func TestReplaceAllKeepsContentsOnError(t *testing.T) {
	s := NewStore(2)
	if err := s.Add("d1", []Chunk{chunk("c1", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	err := s.ReplaceAll([]DocumentChunks{
		{DocumentID: "d2", Chunks: []Chunk{chunk("c2", 1, 0), chunk("c3", 1, 0, 0)}},
	})
	if !errors.Is(err, util.ErrDimensionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("failed rebuild clobbered contents: %d chunks", s.Len())
	}
}

func TestReplaceAllRejectsEmptyEmbedding(t *testing.T) {
	s := NewStore(0)
	if err := s.Add("d1", []Chunk{chunk("c1", 1, 0)}); err != nil {
		t.Fatal(err)
	}
	err := s.ReplaceAll([]DocumentChunks{
		{DocumentID: "d2", Chunks: []Chunk{chunk("empty"), chunk("c2", 1, 0)}},
	})
	if !errors.Is(err, util.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("failed rebuild clobbered contents: %d chunks", s.Len())
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: %v", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors: %v", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("opposite vectors: %v", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("zero magnitude: %v", got)
	}
	if got := Cosine([]float32{1, 0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("length mismatch: %v", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Fatalf("empty vectors: %v", got)
	}
}

func TestEndToEndRetrievalScenario(t *testing.T) {
	s := NewStore(3)
	if err := s.Add("standards-doc", []Chunk{
		{ChunkID: "pump-chunk", Text: "Centrifugal pump minimum flow requirements", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"category": "pumps", "title": "Pump Standards"}},
		{ChunkID: "vessel-chunk", Text: "Pressure vessel relief sizing", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"category": "vessels", "title": "Vessel Standards"}},
	}); err != nil {
		t.Fatal(err)
	}

	results := s.Query([]float32{0.9, 0.1, 0}, 1, 0.5)
	if len(results) != 1 || results[0].Chunk.ChunkID != "pump-chunk" {
		t.Fatalf("unexpected retrieval: %+v", results)
	}

	formatted := FormatContext(results)
	if formatted == "" {
		t.Fatal("expected formatted context")
	}
	if want := "[PUMPS: Pump Standards]"; !containsLine(formatted, want) {
		t.Fatalf("context missing header %q:\n%s", want, formatted)
	}
}

func containsLine(s, line string) bool {
	for _, l := range splitLines(s) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
