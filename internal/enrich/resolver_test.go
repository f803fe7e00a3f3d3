package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
)

// enrichBackend is a fake secondary service that knows a fixed set of
// tracks and counts how often each endpoint is hit.
type enrichBackend struct {
	// primary ID -> tempo; tracks not present are unknown to the service
	tracks map[string]float64

	resolveCalls atomic.Int32
	featureCalls atomic.Int32
}

func (b *enrichBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/track", func(w http.ResponseWriter, r *http.Request) {
		b.resolveCalls.Add(1)
		var entries []string
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if _, ok := b.tracks[id]; !ok {
				continue
			}
			entries = append(entries, fmt.Sprintf(
				`{"id": "sec-%s", "href": "https://open.spotify.com/track/%s"}`, id, id))
		}
		fmt.Fprintf(w, `{"content": [%s]}`, strings.Join(entries, ","))
	})
	mux.HandleFunc("/v1/track/", func(w http.ResponseWriter, r *http.Request) {
		b.featureCalls.Add(1)
		// /v1/track/sec-<primary>/audio-features
		parts := strings.Split(r.URL.Path, "/")
		primary := strings.TrimPrefix(parts[3], "sec-")
		tempo, ok := b.tracks[primary]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"tempo": %g, "energy": 0.5}`, tempo)
	})
	return mux
}

func newTestResolver(t *testing.T, backend *enrichBackend) (*Resolver, *MemoryStore) {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(1000))
	store := NewMemoryStore()
	return NewResolver(client, store, log.New(io.Discard)), store
}

func TestEnrichFetchesAndCaches(t *testing.T) {
	backend := &enrichBackend{tracks: map[string]float64{"aaa": 120, "bbb": 90}}
	resolver, _ := newTestResolver(t, backend)

	got := resolver.Enrich(context.Background(), []string{"aaa", "bbb"})

	if len(got) != 2 {
		t.Fatalf("got %d enriched tracks, want 2", len(got))
	}
	if got["aaa"].Tempo == nil || *got["aaa"].Tempo != 120 {
		t.Errorf("aaa tempo = %v, want 120", got["aaa"].Tempo)
	}

	// A second call for the same IDs must be served entirely from the store.
	resolveBefore := backend.resolveCalls.Load()
	featuresBefore := backend.featureCalls.Load()

	again := resolver.Enrich(context.Background(), []string{"aaa", "bbb"})
	if len(again) != 2 {
		t.Fatalf("second call: got %d tracks, want 2", len(again))
	}
	if backend.resolveCalls.Load() != resolveBefore {
		t.Error("second call hit the resolve endpoint despite a warm store")
	}
	if backend.featureCalls.Load() != featuresBefore {
		t.Error("second call hit the features endpoint despite a warm store")
	}
}

func TestEnrichDuplicateIDsFetchOnce(t *testing.T) {
	backend := &enrichBackend{tracks: map[string]float64{"aaa": 120}}
	resolver, _ := newTestResolver(t, backend)

	got := resolver.Enrich(context.Background(), []string{"aaa", "aaa", "aaa"})

	if len(got) != 1 {
		t.Fatalf("got %d tracks, want 1", len(got))
	}
	if calls := backend.featureCalls.Load(); calls != 1 {
		t.Errorf("feature endpoint hit %d times for one unique ID, want 1", calls)
	}
}

func TestEnrichUnknownIDAbsent(t *testing.T) {
	backend := &enrichBackend{tracks: map[string]float64{"aaa": 120}}
	resolver, _ := newTestResolver(t, backend)

	got := resolver.Enrich(context.Background(), []string{"aaa", "zzz"})

	if len(got) != 1 {
		t.Fatalf("got %d tracks, want 1", len(got))
	}
	if _, ok := got["zzz"]; ok {
		t.Error("unknown ID present in result")
	}
}

func TestEnrichPartialStoreHitFetchesOnlyMissing(t *testing.T) {
	backend := &enrichBackend{tracks: map[string]float64{"aaa": 120, "bbb": 90}}
	resolver, store := newTestResolver(t, backend)

	tempo := 99.0
	if err := store.Put(context.Background(), map[string]Attributes{
		"aaa": {Tempo: &tempo},
	}); err != nil {
		t.Fatal(err)
	}

	got := resolver.Enrich(context.Background(), []string{"aaa", "bbb"})

	if *got["aaa"].Tempo != 99 {
		t.Errorf("stored attributes overwritten: tempo = %v", *got["aaa"].Tempo)
	}
	if *got["bbb"].Tempo != 90 {
		t.Errorf("bbb tempo = %v, want 90", *got["bbb"].Tempo)
	}
	if calls := backend.featureCalls.Load(); calls != 1 {
		t.Errorf("feature endpoint hit %d times, want 1 for the single miss", calls)
	}
}

func TestEnrichResolveFailureDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(1000))
	resolver := NewResolver(client, NewMemoryStore(), log.New(io.Discard))

	got := resolver.Enrich(context.Background(), []string{"aaa", "bbb"})
	if len(got) != 0 {
		t.Errorf("got %d tracks from a dead service, want 0", len(got))
	}
}

func TestEnrichEmptyInput(t *testing.T) {
	backend := &enrichBackend{}
	resolver, _ := newTestResolver(t, backend)

	got := resolver.Enrich(context.Background(), nil)
	if len(got) != 0 {
		t.Errorf("got %d tracks for empty input, want 0", len(got))
	}
	if backend.resolveCalls.Load() != 0 {
		t.Error("resolve endpoint hit for empty input")
	}
}
