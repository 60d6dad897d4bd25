// Package dedupe provides the atomic claim set used to keep attendance
// at most once per (session, identity).
package dedupe

import (
	"context"
	"sync"
)

// Deduper records claimed keys to ensure at-most-once recording.
type Deduper interface {
	// SeenAndRecord atomically checks if key was claimed and claims it if not.
	// Returns true if key was already claimed, false if this call claimed it.
	SeenAndRecord(ctx context.Context, key string) bool

	// Seen reports whether key is claimed without claiming it.
	Seen(ctx context.Context, key string) bool

	// Unrecord releases a claim so the key can be claimed again. Used when
	// the write guarded by the claim failed, or by administrative deletion.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of claimed keys.
	Size() int64
}

// inMemoryDeduper implements Deduper with a mutex-guarded set. It never
// evicts: forgetting a claim would allow a second recording for the same key.
type inMemoryDeduper struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &inMemoryDeduper{
		seen: make(map[string]struct{}, cfg.initialCapacity),
	}
}

// SeenAndRecord atomically checks and claims key.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// Seen reports whether key is claimed.
func (d *inMemoryDeduper) Seen(_ context.Context, key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[key]
	return ok
}

// Unrecord releases key.
func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}

// Size returns the number of claimed keys.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.seen))
}
