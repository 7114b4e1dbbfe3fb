package dedupe

import (
	"context"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"
)

// Bounded in-memory ledger of processed webhook item ids, keeping re-fetched
// pages idempotent. When the ledger exceeds its cap it is cleared wholesale:
// a short re-processing risk right after the clear is accepted over
// unbounded growth.
type BoundedDedupe struct {
	log        logger.Logger
	maxEntries int

	mu    sync.Mutex
	items map[string]struct{}
}

func NewBoundedDedupe(log logger.Logger, maxEntries int) *BoundedDedupe {
	return &BoundedDedupe{
		log:        log,
		maxEntries: maxEntries,
		items:      make(map[string]struct{}, 1024),
	}
}

func (b *BoundedDedupe) Seen(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.items[id]
	return ok, nil
}

func (b *BoundedDedupe) Mark(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[id] = struct{}{}

	if len(b.items) > b.maxEntries {
		b.log.Infof("Dedup ledger exceeded %d entries, clearing", b.maxEntries)
		b.items = make(map[string]struct{}, 1024)
	}

	return nil
}

func (b *BoundedDedupe) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Drop the whole ledger; called on epoch reset
func (b *BoundedDedupe) Reset() {
	b.mu.Lock()
	b.items = make(map[string]struct{}, 1024)
	b.mu.Unlock()
}
