package vector

import (
	"context"
	"sync"
	"time"
)

// DocumentChunks groups the chunks of one reference document in storage
// order, so rebuilding the store reproduces insertion order exactly.
type DocumentChunks struct {
	DocumentID string
	Chunks     []Chunk
}

// Loader supplies the chunk payloads of the active reference-document set.
type Loader interface {
	LoadActiveChunks(ctx context.Context) ([]DocumentChunks, error)
}

// Hydrator keeps a Store in sync with persisted reference chunks. The
// store is rebuilt at most once per TTL; Invalidate forces a rebuild on
// the next Ensure. Both the API process and the worker process run their
// own store, so each carries its own hydrator.
type Hydrator struct {
	store  *Store
	loader Loader
	ttl    time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewHydrator(store *Store, loader Loader, ttl time.Duration) *Hydrator {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Hydrator{store: store, loader: loader, ttl: ttl}
}

// Ensure rebuilds the store from persisted chunks if the last rebuild is
// older than the TTL.
func (h *Hydrator) Ensure(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.last.IsZero() && time.Since(h.last) < h.ttl {
		return nil
	}
	docs, err := h.loader.LoadActiveChunks(ctx)
	if err != nil {
		return err
	}
	if err := h.store.ReplaceAll(docs); err != nil {
		return err
	}
	h.last = time.Now()
	return nil
}

// Invalidate marks the store stale so the next Ensure rebuilds it.
func (h *Hydrator) Invalidate() {
	h.mu.Lock()
	h.last = time.Time{}
	h.mu.Unlock()
}
