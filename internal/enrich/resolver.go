package enrich

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// defaultConcurrency bounds the per-track attribute fan-out.
const defaultConcurrency = 5

// Resolver enriches primary track IDs with audio attributes, consulting the
// store before the network. It never returns an error: tracks whose
// attributes cannot be obtained are simply absent from the result.
type Resolver struct {
	client      *Client
	store       Store
	concurrency int
	log         *log.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithConcurrency bounds the number of parallel attribute fetches.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewResolver creates a Resolver backed by the given client and store.
func NewResolver(client *Client, store Store, logger *log.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:      client,
		store:       store,
		concurrency: defaultConcurrency,
		log:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enrich returns audio attributes for the given primary track IDs. Stored
// attributes are served without touching the network; the rest go through
// the two-hop lookup with a bounded fan-out, and whatever succeeds is
// written back to the store. The result only ever shrinks on failure.
func (r *Resolver) Enrich(ctx context.Context, primaryIDs []string) map[string]Attributes {
	ids := dedupe(primaryIDs)
	if len(ids) == 0 {
		return map[string]Attributes{}
	}

	result, err := r.store.Get(ctx, ids)
	if err != nil {
		r.log.Warn("reading attribute store", "err", err)
		result = map[string]Attributes{}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return result
	}

	fetched := r.fetchMissing(ctx, missing)
	if len(fetched) == 0 {
		return result
	}

	if err := r.store.Put(ctx, fetched); err != nil {
		r.log.Warn("writing attribute store", "err", err)
	}
	for id, attrs := range fetched {
		result[id] = attrs
	}
	return result
}

// fetchMissing resolves secondary IDs for the missing tracks and fetches
// their attributes in parallel.
func (r *Resolver) fetchMissing(ctx context.Context, missing []string) map[string]Attributes {
	secondary, err := r.client.ResolveIDs(ctx, missing)
	if err != nil {
		r.log.Warn("resolving enrichment IDs", "count", len(missing), "err", err)
		return nil
	}
	if len(secondary) == 0 {
		return nil
	}

	type job struct {
		primary   string
		secondary string
	}
	type outcome struct {
		primary string
		attrs   Attributes
	}

	jobs := make(chan job, len(secondary))
	outcomes := make(chan outcome, len(secondary))

	var wg sync.WaitGroup
	workers := min(r.concurrency, len(secondary))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				attrs, err := r.client.AudioFeatures(ctx, j.secondary)
				if err != nil {
					r.log.Warn("fetching audio features", "track", j.primary, "err", err)
					continue
				}
				outcomes <- outcome{primary: j.primary, attrs: attrs}
			}
		}()
	}

	for _, id := range missing {
		if sec, ok := secondary[id]; ok {
			jobs <- job{primary: id, secondary: sec}
		}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	fetched := make(map[string]Attributes, len(secondary))
	for o := range outcomes {
		fetched[o.primary] = o.attrs
	}
	return fetched
}

// dedupe keeps the first occurrence of each non-empty ID.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
