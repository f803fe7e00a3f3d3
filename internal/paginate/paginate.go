// Package paginate fetches entire paginated collections of unknown size
// using a bounded fan-out over pre-computed page offsets.
package paginate

import (
	"context"
	"slices"
	"sync"
)

// Defaults for collection traversal.
const (
	DefaultLimit       = 50
	DefaultConcurrency = 8
)

// FetchFunc fetches one page at the given offset. It returns the page's
// items plus the collection's reported total (hasTotal false when the
// service omitted it). A failed page is reported as zero items — the fetch
// is attempted exactly once and the aggregation carries on without it.
type FetchFunc[T any] func(ctx context.Context, offset, limit int) (items []T, total int, hasTotal bool)

// Options configures a traversal.
type Options struct {
	Limit       int // page size, default 50
	Concurrency int // fan-out workers, default 8
	MaxItems    int // truncate the merged result, 0 = unlimited
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// All fetches every page of a collection and returns the items in offset
// order, regardless of the order in which concurrent fetches complete.
//
// The first page is fetched synchronously: an empty first page means an
// empty collection and no further calls are made. When the first page
// reports a total, the remaining offsets {limit, 2*limit, ... < total} are
// dispatched across a bounded worker pool and joined before merging. When
// the total is absent the traversal falls back to sequential exhaustion,
// stopping at the first empty page, because the stopping condition is only
// knowable after seeing each page.
//
// The total is a snapshot: a collection that grows after the first page is
// not retroactively re-sized, and one that shrinks simply yields short
// pages. This staleness is accepted, not worked around.
func All[T any](ctx context.Context, fetch FetchFunc[T], opts Options) []T {
	opts = opts.withDefaults()
	limit := opts.Limit

	first, total, hasTotal := fetch(ctx, 0, limit)
	if len(first) == 0 {
		return nil
	}

	var items []T
	if hasTotal {
		items = fanOut(ctx, fetch, first, total, limit, opts.Concurrency)
	} else {
		items = exhaust(ctx, fetch, first, limit)
	}

	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}
	return items
}

// Offsets returns the fan-out offsets for a collection of the given total,
// excluding the already-fetched first page.
func Offsets(total, limit int) []int {
	var offsets []int
	for off := limit; off < total; off += limit {
		offsets = append(offsets, off)
	}
	return offsets
}

type pageResult[T any] struct {
	offset int
	items  []T
}

// fanOut dispatches the remaining offsets across a worker pool, waits for
// every worker, and merges pages back in offset order so that completion
// order never leaks into the output.
func fanOut[T any](ctx context.Context, fetch FetchFunc[T], first []T, total, limit, concurrency int) []T {
	offsets := Offsets(total, limit)
	if len(offsets) == 0 {
		return first
	}

	work := make(chan int, len(offsets))
	for _, off := range offsets {
		work <- off
	}
	close(work)

	results := make(chan pageResult[T], len(offsets))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for off := range work {
				items, _, _ := fetch(ctx, off, limit)
				results <- pageResult[T]{offset: off, items: items}
			}
		}()
	}

	wg.Wait()
	close(results)

	pages := make([]pageResult[T], 0, len(offsets))
	for res := range results {
		pages = append(pages, res)
	}
	slices.SortFunc(pages, func(a, b pageResult[T]) int {
		return a.offset - b.offset
	})

	merged := slices.Clone(first)
	for _, p := range pages {
		merged = append(merged, p.items...)
	}
	return merged
}

// exhaust walks the collection one page at a time until an empty page.
func exhaust[T any](ctx context.Context, fetch FetchFunc[T], first []T, limit int) []T {
	items := slices.Clone(first)
	for off := limit; ; off += limit {
		if ctx.Err() != nil {
			break
		}
		page, _, _ := fetch(ctx, off, limit)
		if len(page) == 0 {
			break
		}
		items = append(items, page...)
	}
	return items
}
