package paginate

import (
	"context"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

// sliceFetcher serves pages out of a fixed backing slice and counts calls.
type sliceFetcher struct {
	data      []int
	withTotal bool
	calls     atomic.Int32
	// delay per offset, to force out-of-order completion
	delays map[int]time.Duration
}

func (f *sliceFetcher) fetch(_ context.Context, offset, limit int) ([]int, int, bool) {
	f.calls.Add(1)
	if d, ok := f.delays[offset]; ok {
		time.Sleep(d)
	}
	if offset >= len(f.data) {
		return nil, len(f.data), f.withTotal
	}
	end := min(offset+limit, len(f.data))
	return slices.Clone(f.data[offset:end]), len(f.data), f.withTotal
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestAllEmptyFirstPageStopsImmediately(t *testing.T) {
	f := &sliceFetcher{data: nil, withTotal: true}

	got := All(context.Background(), f.fetch, Options{Limit: 50})

	if len(got) != 0 {
		t.Errorf("got %d items, want 0", len(got))
	}
	if calls := f.calls.Load(); calls != 1 {
		t.Errorf("made %d calls, want exactly 1 for an empty collection", calls)
	}
}

func TestAllSinglePageNoFanOut(t *testing.T) {
	f := &sliceFetcher{data: seq(30), withTotal: true}

	got := All(context.Background(), f.fetch, Options{Limit: 50})

	if !slices.Equal(got, seq(30)) {
		t.Errorf("got %v, want 0..29", got)
	}
	if calls := f.calls.Load(); calls != 1 {
		t.Errorf("made %d calls, want 1 when everything fits the first page", calls)
	}
}

func TestAllDispatchedOffsetCount(t *testing.T) {
	tests := []struct {
		total     int
		limit     int
		wantCalls int32 // 1 first page + ceil(total/limit)-1 fan-out pages
	}{
		{total: 50, limit: 50, wantCalls: 1},
		{total: 51, limit: 50, wantCalls: 2},
		{total: 100, limit: 50, wantCalls: 2},
		{total: 101, limit: 50, wantCalls: 3},
		{total: 500, limit: 50, wantCalls: 10},
		{total: 7, limit: 3, wantCalls: 3},
	}

	for _, tt := range tests {
		f := &sliceFetcher{data: seq(tt.total), withTotal: true}
		got := All(context.Background(), f.fetch, Options{Limit: tt.limit})

		if len(got) != tt.total {
			t.Errorf("total=%d limit=%d: got %d items", tt.total, tt.limit, len(got))
		}
		if calls := f.calls.Load(); calls != tt.wantCalls {
			t.Errorf("total=%d limit=%d: made %d calls, want %d", tt.total, tt.limit, calls, tt.wantCalls)
		}
	}
}

func TestAllOrderIndependentOfCompletionOrder(t *testing.T) {
	// Delay early offsets so later pages complete first.
	f := &sliceFetcher{
		data:      seq(200),
		withTotal: true,
		delays: map[int]time.Duration{
			50:  60 * time.Millisecond,
			100: 30 * time.Millisecond,
			150: 0,
		},
	}

	got := All(context.Background(), f.fetch, Options{Limit: 50, Concurrency: 8})

	if !slices.Equal(got, seq(200)) {
		t.Errorf("merged output not in offset order: first/last = %d/%d", got[0], got[len(got)-1])
	}
}

func TestAllFailedPageDegrades(t *testing.T) {
	// Offset 50 "fails": fetcher returns nothing for it.
	fail := 50
	base := &sliceFetcher{data: seq(150), withTotal: true}
	fetch := func(ctx context.Context, offset, limit int) ([]int, int, bool) {
		if offset == fail {
			return nil, 150, true
		}
		return base.fetch(ctx, offset, limit)
	}

	got := All(context.Background(), fetch, Options{Limit: 50})

	want := append(seq(50), seq(150)[100:]...)
	if !slices.Equal(got, want) {
		t.Errorf("got %d items, want %d with the failed page absent", len(got), len(want))
	}
}

func TestAllSequentialFallbackWithoutTotal(t *testing.T) {
	f := &sliceFetcher{data: seq(120), withTotal: false}

	got := All(context.Background(), f.fetch, Options{Limit: 50})

	if !slices.Equal(got, seq(120)) {
		t.Errorf("got %d items, want 120 in order", len(got))
	}
	// 3 data pages + 1 terminating empty page
	if calls := f.calls.Load(); calls != 4 {
		t.Errorf("made %d calls, want 4 (sequential exhaustion)", calls)
	}
}

func TestAllMaxItemsTruncates(t *testing.T) {
	f := &sliceFetcher{data: seq(180), withTotal: true}

	got := All(context.Background(), f.fetch, Options{Limit: 50, MaxItems: 100})

	if !slices.Equal(got, seq(100)) {
		t.Errorf("got %d items, want first 100", len(got))
	}
}

func TestOffsets(t *testing.T) {
	tests := []struct {
		total, limit int
		want         []int
	}{
		{0, 50, nil},
		{50, 50, nil},
		{51, 50, []int{50}},
		{150, 50, []int{50, 100}},
		{151, 50, []int{50, 100, 150}},
	}
	for _, tt := range tests {
		if got := Offsets(tt.total, tt.limit); !slices.Equal(got, tt.want) {
			t.Errorf("Offsets(%d, %d) = %v, want %v", tt.total, tt.limit, got, tt.want)
		}
	}
}
