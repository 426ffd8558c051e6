// Package batch splits location lists into server-sized chunks and fans large
// generation jobs out over a fixed pool of workers.
package batch

import (
	"context"
	"fmt"

	"github.com/couchcryptid/biosim-client/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Range is a half-open index interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len is the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

// Chunks partitions n items into contiguous ranges of at most capacity items. The last
// range may be shorter. n == 0 yields no ranges.
func Chunks(n, capacity int) []Range {
	if n <= 0 {
		return nil
	}
	if capacity <= 0 {
		capacity = n
	}
	out := make([]Range, 0, (n+capacity-1)/capacity)
	for start := 0; start < n; start += capacity {
		out = append(out, Range{Start: start, End: min(start+capacity, n)})
	}
	return out
}

// Split partitions n items into at most parts contiguous ranges of near-equal size.
func Split(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	parts = max(1, min(parts, n))
	out := make([]Range, 0, parts)
	size, rem := n/parts, n%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		out = append(out, Range{Start: start, End: end})
		start = end
	}
	return out
}

// CheckCeiling rejects a request of n locations above ceiling. A ceiling of zero or
// less disables the check.
func CheckCeiling(n, ceiling int) error {
	if ceiling > 0 && n > ceiling {
		return fmt.Errorf("%w: %d locations exceed the single-request limit of %d", domain.ErrValidation, n, ceiling)
	}
	return nil
}

// Func processes one chunk and returns exactly one result per item, in item order.
type Func[T, R any] func(ctx context.Context, chunk []T) ([]R, error)

// Sequential calls fn once per chunk of at most capacity items on the caller's
// goroutine and concatenates the results in item order. It stops at the first error.
func Sequential[T, R any](ctx context.Context, items []T, capacity int, fn Func[T, R]) ([]R, error) {
	out := make([]R, 0, len(items))
	for _, r := range Chunks(len(items), capacity) {
		res, err := fn(ctx, items[r.Start:r.End])
		if err != nil {
			return nil, err
		}
		if len(res) != r.Len() {
			return nil, fmt.Errorf("%w: chunk [%d, %d) returned %d results", domain.ErrDecode, r.Start, r.End, len(res))
		}
		out = append(out, res...)
	}
	return out, nil
}

// Pool runs chunked work over a fixed number of workers.
type Pool struct {
	// Workers is the pool size. One or fewer runs everything on the caller's goroutine.
	Workers int
	// Threshold is the smallest item count worth spreading over workers.
	Threshold int
}

// Parallel reports whether n items would be spread over workers.
func (p Pool) Parallel(n int) bool {
	return p.Workers > 1 && n >= p.Threshold
}

// Run processes items in chunks of at most capacity. Below the pool threshold it
// behaves like Sequential. Otherwise each worker owns one contiguous range of items and
// walks it chunk by chunk. A failing worker does not stop the others; Run waits for
// every worker and returns the first error observed. Results are merged by range, so
// output order matches input order.
func Run[T, R any](ctx context.Context, p Pool, items []T, capacity int, fn Func[T, R]) ([]R, error) {
	if !p.Parallel(len(items)) {
		return Sequential(ctx, items, capacity, fn)
	}

	ranges := Split(len(items), p.Workers)
	slots := make([][]R, len(ranges))
	var g errgroup.Group
	for i, r := range ranges {
		g.Go(func() error {
			res, err := Sequential(ctx, items[r.Start:r.End], capacity, fn)
			if err != nil {
				return fmt.Errorf("worker %d [%d, %d): %w", i, r.Start, r.End, err)
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]R, 0, len(items))
	for _, res := range slots {
		out = append(out, res...)
	}
	return out, nil
}
