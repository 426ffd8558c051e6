package cache

import (
	"context"
	"sync"
)

// Lazy holds a value discovered from the service on first use and kept for the lifetime
// of its owner. Concurrent first callers wait for a single load.
type Lazy[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
	load   func(ctx context.Context) (T, error)
}

// NewLazy creates a Lazy backed by load.
func NewLazy[T any](load func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{load: load}
}

// Get returns the cached value, loading it if needed. Failed loads are not cached so the
// next call retries.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.value, nil
	}
	v, err := l.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.value, l.loaded = v, true
	return v, nil
}

// GetOrFallback is Get, except that a failed load caches fallback for good. The load
// error is returned alongside the fallback for logging.
func (l *Lazy[T]) GetOrFallback(ctx context.Context, fallback T) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.value, nil
	}
	v, err := l.load(ctx)
	if err != nil {
		v = fallback
	}
	l.value, l.loaded = v, true
	return v, err
}
