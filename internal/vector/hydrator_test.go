package vector

import (
	"context"
	"testing"
	"time"
)

type fakeLoader struct {
	docs  []DocumentChunks
	calls int
}

func (f *fakeLoader) LoadActiveChunks(context.Context) ([]DocumentChunks, error) {
	f.calls++
	return f.docs, nil
}

func TestHydratorEnsureRespectsTTL(t *testing.T) {
	loader := &fakeLoader{docs: []DocumentChunks{
		{DocumentID: "d1", Chunks: []Chunk{chunk("c1", 1, 0)}},
	}}
	store := NewStore(0)
	h := NewHydrator(store, loader, time.Minute)

	if err := h.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Fatalf("store not hydrated: %d chunks", store.Len())
	}
	if err := h.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected 1 load within TTL, got %d", loader.calls)
	}
}

func TestHydratorInvalidateForcesRebuild(t *testing.T) {
	loader := &fakeLoader{}
	store := NewStore(0)
	h := NewHydrator(store, loader, time.Minute)

	if err := h.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	loader.docs = []DocumentChunks{{DocumentID: "d1", Chunks: []Chunk{chunk("c1", 1, 0)}}}
	h.Invalidate()
	if err := h.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", loader.calls)
	}
	if store.Len() != 1 {
		t.Fatalf("store not rebuilt after invalidate: %d chunks", store.Len())
	}
}
