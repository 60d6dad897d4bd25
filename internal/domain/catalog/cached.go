package catalog

import (
	"context"
	"sync"

	"github.com/okian/rollcall/pkg/metrics"
)

// Cached keeps one catalog snapshot per scope and reloads it whenever the
// source's enrollment revision moves. Each Load costs one revision read.
type Cached struct {
	src Source

	mu        sync.RWMutex
	snapshots map[string]Catalog
}

// NewCached returns a revision-checked caching loader.
func NewCached(src Source) *Cached {
	return &Cached{src: src, snapshots: make(map[string]Catalog)}
}

// Load returns the cached snapshot for scope if it is current, reloading otherwise.
func (c *Cached) Load(ctx context.Context, scope string) (Catalog, error) {
	rev, err := c.src.EnrollmentRevision(ctx)
	if err != nil {
		return Catalog{}, err
	}

	c.mu.RLock()
	snap, ok := c.snapshots[scope]
	c.mu.RUnlock()
	if ok && snap.revision == rev {
		metrics.RecordCatalogCache(true)
		return snap, nil
	}
	metrics.RecordCatalogCache(false)

	samples, err := c.src.LoadEnrollments(ctx, scope)
	if err != nil {
		return Catalog{}, err
	}
	snap = New(scope, rev, samples)

	c.mu.Lock()
	// A concurrent loader may have stored a newer revision already.
	if cur, ok := c.snapshots[scope]; !ok || cur.revision <= rev {
		c.snapshots[scope] = snap
	}
	c.mu.Unlock()
	return snap, nil
}

// Invalidate drops every snapshot.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.snapshots = make(map[string]Catalog)
	c.mu.Unlock()
}
