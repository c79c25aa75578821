package match

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tunelift/tunelift/errs"
	"github.com/tunelift/tunelift/pkg/client"
	"github.com/tunelift/tunelift/provider"
	"github.com/tunelift/tunelift/types"
)

type fakeResolver struct {
	track types.Track
	err   error
}

func (f fakeResolver) Resolve(ctx context.Context, id string, inline map[string]any) (types.Track, error) {
	return f.track, f.err
}

type fakeProvider struct {
	name  string
	cand  types.Candidate
	err   error
	delay time.Duration
}

func (f fakeProvider) Name() string { return f.name }
func (f fakeProvider) Check(ctx context.Context, track types.Track) (types.Candidate, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.Candidate{}, ctx.Err()
		}
	}
	return f.cand, f.err
}

// audioServer serves a fake audio byte for validation probes.
func audioServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff})
	}))
	t.Cleanup(server.Close)
	return server
}

func newMatcher(t *testing.T, track types.Track, providers ...provider.Provider) *Matcher {
	t.Helper()
	reg := provider.NewRegistry()
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		reg.Register(p)
		order = append(order, p.Name())
	}
	return New(fakeResolver{track: track}, reg, client.New()).WithOrder(order)
}

func TestScoreDeterminism(t *testing.T) {
	track := types.Track{Name: "t", DurationMs: 240000}

	// Candidate similarity is driven through duration only; verify the
	// documented arithmetic with explicit similarity values.
	a := 1000.0 - similarityFactor*0.8  // duration diff 1000ms, similarity 0.8
	b := 60000.0 - similarityFactor*0.9 // duration diff 60000ms, similarity 0.9
	if a >= b {
		t.Fatalf("close-duration candidate must score lower: %f vs %f", a, b)
	}

	// And via the real scorer: identical metadata, differing durations.
	near := types.Candidate{Title: "t", DurationMs: 241000}
	far := types.Candidate{Title: "t", DurationMs: 180000}
	if score(track, near) >= score(track, far) {
		t.Fatal("nearer duration must win under equal similarity")
	}
}

func TestScoreUnknownTrackDuration(t *testing.T) {
	track := types.Track{Name: "t"}
	cand := types.Candidate{Title: "t", DurationMs: 500000}
	if got := score(track, cand); got != -similarityFactor*similarity(track, cand) {
		t.Fatalf("duration diff must be zero when track duration unknown, score=%f", got)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"hello world", "hello world", 1},
		{"hello world", "world hello", 1},
		{"a b", "c d", 0},
		{"a b", "b c", 1.0 / 3.0},
		{"", "", 1},
		{"a", "", 0},
	}
	for _, tt := range tests {
		if got := jaccard(tokenize(tt.a), tokenize(tt.b)); got != tt.want {
			t.Errorf("jaccard(%q,%q) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Hello/World-Foo_Bar·Baz  Qux")
	want := []string{"hello", "world", "foo", "bar", "baz", "qux"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokens = %v, want %v", got, want)
		}
	}
}

func TestMatchFallbackToSingleSurvivor(t *testing.T) {
	server := audioServer(t)
	track := types.Track{ID: "1", Name: "Song", DurationMs: 200000}
	m := newMatcher(t, track,
		fakeProvider{name: "a", err: errors.New("down")},
		fakeProvider{name: "b", cand: types.Candidate{URL: server.URL, Source: "b", Title: "Song", DurationMs: 200000}},
		fakeProvider{name: "c", err: errors.New("also down")},
	)

	cand, err := m.Match(context.Background(), "1", nil)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if cand.Source != "b" {
		t.Fatalf("want survivor b, got %q", cand.Source)
	}
}

func TestMatchAllProvidersFail(t *testing.T) {
	track := types.Track{ID: "1", Name: "Song"}
	m := newMatcher(t, track,
		fakeProvider{name: "a", err: errors.New("x")},
		fakeProvider{name: "b", err: errors.New("y")},
		fakeProvider{name: "c", err: errors.New("z")},
	)

	if _, err := m.Match(context.Background(), "1", nil); !errors.Is(err, errs.ErrNoCandidates) {
		t.Fatalf("want ErrNoCandidates, got %v", err)
	}
}

func TestMatchNoProvidersRegistered(t *testing.T) {
	m := New(fakeResolver{track: types.Track{ID: "1", Name: "s"}}, provider.NewRegistry(), client.New())
	if _, err := m.Match(context.Background(), "1", nil); !errors.Is(err, errs.ErrNoCandidates) {
		t.Fatalf("want ErrNoCandidates, got %v", err)
	}
}

func TestMatchValidationFallback(t *testing.T) {
	// Server always answers a JSON body: every probe fails, yet the match
	// must still return the best-scored candidate.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"denied"}`))
	}))
	defer server.Close()

	track := types.Track{ID: "1", Name: "Song", DurationMs: 200000}
	best := types.Candidate{URL: server.URL, Source: "good", Title: "Song", DurationMs: 200000}
	worse := types.Candidate{URL: server.URL, Source: "bad", Title: "Song", DurationMs: 100000}
	m := newMatcher(t, track,
		fakeProvider{name: "good", cand: best},
		fakeProvider{name: "bad", cand: worse},
	)

	cand, err := m.Match(context.Background(), "1", nil)
	if err != nil {
		t.Fatalf("match must not fail on validation: %v", err)
	}
	if cand.Source != "good" {
		t.Fatalf("want best-scored fallback, got %q", cand.Source)
	}
}

func TestMatchSelectMaxBitrate(t *testing.T) {
	server := audioServer(t)
	track := types.Track{ID: "1", Name: "Song", DurationMs: 200000}
	low := types.Candidate{URL: server.URL, Source: "low", BitRate: 128000, Title: "Song", DurationMs: 200000}
	high := types.Candidate{URL: server.URL, Source: "high", BitRate: 999000, Title: "different title entirely", DurationMs: 150000}
	m := newMatcher(t, track,
		fakeProvider{name: "low", cand: low},
		fakeProvider{name: "high", cand: high},
	).WithSelectMaxBitrate(true)

	cand, err := m.Match(context.Background(), "1", nil)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if cand.Source != "high" {
		t.Fatalf("max-bitrate mode must prefer high, got %q", cand.Source)
	}
}

func TestMatchFollowSourceOrderTiebreak(t *testing.T) {
	server := audioServer(t)
	track := types.Track{ID: "1", Name: "Song", DurationMs: 200000}
	// Identical candidates, so scores tie; provider-list position decides.
	cand := types.Candidate{URL: server.URL, Title: "Song", DurationMs: 200000}
	first := cand
	first.Source = "first"
	second := cand
	second.Source = "second"
	m := newMatcher(t, track,
		fakeProvider{name: "first", cand: first},
		fakeProvider{name: "second", cand: second},
	).WithFollowSourceOrder(true)

	got, err := m.Match(context.Background(), "1", nil)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if got.Source != "first" {
		t.Fatalf("source-order tiebreak must keep list position, got %q", got.Source)
	}
}

func TestMatchProviderTimeout(t *testing.T) {
	server := audioServer(t)
	track := types.Track{ID: "1", Name: "Song", DurationMs: 200000}
	m := newMatcher(t, track,
		fakeProvider{name: "slow", delay: 5 * time.Second, cand: types.Candidate{URL: server.URL, Source: "slow"}},
		fakeProvider{name: "fast", cand: types.Candidate{URL: server.URL, Source: "fast", Title: "Song", DurationMs: 200000}},
	).WithTimeout(50 * time.Millisecond)

	start := time.Now()
	cand, err := m.Match(context.Background(), "1", nil)
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if cand.Source != "fast" {
		t.Fatalf("want fast provider, got %q", cand.Source)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("slow provider must be cut off by its own deadline")
	}
}

func TestMatchResolveErrorPropagates(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(fakeProvider{name: "kuwo"})
	m := New(fakeResolver{err: errs.ErrTrackNotFound}, reg, client.New())
	if _, err := m.Match(context.Background(), "1", nil); !errors.Is(err, errs.ErrTrackNotFound) {
		t.Fatalf("want ErrTrackNotFound, got %v", err)
	}
}
