// Package cache holds the in-memory caches owned by a climate service: the
// signature-to-handle map and lazily discovered server values.
package cache

import (
	"sync"

	"github.com/couchcryptid/biosim-client/internal/domain"
)

// HandleCache is a thread-safe one-to-one map between query signatures and server
// handles. Forward entries are bucketed on the exact fields of the signature and probed
// linearly with the coordinate tolerance; a reverse index maps each handle back to its
// entry. Both sides are updated under one lock.
type HandleCache struct {
	mu       sync.Mutex
	buckets  map[domain.SignatureKey][]*handleEntry
	byHandle map[domain.Handle]*handleEntry
}

type handleEntry struct {
	sig    domain.QuerySignature
	handle domain.Handle
}

// NewHandleCache creates an empty cache.
func NewHandleCache() *HandleCache {
	return &HandleCache{
		buckets:  make(map[domain.SignatureKey][]*handleEntry),
		byHandle: make(map[domain.Handle]*handleEntry),
	}
}

// Lookup returns the handle stored for a signature equal to sig.
func (c *HandleCache) Lookup(sig domain.QuerySignature) (domain.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.find(sig); e != nil {
		return e.handle, true
	}
	return "", false
}

// Insert links sig and handle. Any entry already holding sig or handle is evicted first
// so that both maps stay exact inverses.
func (c *HandleCache) Insert(sig domain.QuerySignature, handle domain.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byHandle[handle]; ok {
		c.remove(e)
	}
	if e := c.find(sig); e != nil {
		c.remove(e)
	}

	e := &handleEntry{sig: sig, handle: handle}
	key := sig.Key()
	c.buckets[key] = append(c.buckets[key], e)
	c.byHandle[handle] = e
}

// EvictByHandle removes the entry holding handle, if any.
func (c *HandleCache) EvictByHandle(handle domain.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byHandle[handle]; ok {
		c.remove(e)
	}
}

// Len is the number of live entries.
func (c *HandleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHandle)
}

// Handles returns a snapshot of every cached handle.
func (c *HandleCache) Handles() []domain.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Handle, 0, len(c.byHandle))
	for h := range c.byHandle {
		out = append(out, h)
	}
	return out
}

// Signature returns the signature stored for handle.
func (c *HandleCache) Signature(handle domain.Handle) (domain.QuerySignature, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byHandle[handle]; ok {
		return e.sig, true
	}
	return domain.QuerySignature{}, false
}

func (c *HandleCache) find(sig domain.QuerySignature) *handleEntry {
	for _, e := range c.buckets[sig.Key()] {
		if e.sig.Equal(sig) {
			return e
		}
	}
	return nil
}

func (c *HandleCache) remove(e *handleEntry) {
	delete(c.byHandle, e.handle)
	key := e.sig.Key()
	bucket := c.buckets[key]
	for i, candidate := range bucket {
		if candidate == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.buckets, key)
		return
	}
	c.buckets[key] = bucket
}
