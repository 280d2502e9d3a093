package civix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func withClock(now func() time.Time) Option {
	return func(c *Config) {
		c.now = now
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	base := []Option{WithDataDir(""), WithCacheDir("")}
	r, err := NewResolver(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func geocoderWith(zip string, res GeocodeResult) *stubGeocoder {
	res.ZIP = zip
	return &stubGeocoder{name: "stub", results: map[string]*GeocodeResult{zip: &res}}
}

func TestResolveFromTable(t *testing.T) {
	g := &stubGeocoder{name: "stub"}
	r := newTestResolver(t, WithGeocoder(g))

	tests := []struct {
		zip          string
		county       string
		districts    Districts
		kind         JurisdictionKind
		municipality string
	}{
		{"94102", "San Francisco", Districts{11, 11, 17}, Incorporated, "San Francisco"},
		{"94102-4733", "San Francisco", Districts{11, 11, 17}, Incorporated, "San Francisco"},
		{"90210", "Los Angeles", Districts{36, 24, 51}, Incorporated, "Beverly Hills"},
		{"91331", "Los Angeles", Districts{29, 20, 39}, Incorporated, "Los Angeles"},
		{"90022", "Los Angeles", Districts{34, 26, 52}, Unincorporated, ""},
		{"94904", "Marin", Districts{2, 2, 12}, Unincorporated, ""},
		{"92807", "Orange", Districts{40, 37, 59}, Incorporated, "Anaheim"},
	}
	for _, tt := range tests {
		t.Run(tt.zip, func(t *testing.T) {
			res, err := r.Resolve(context.Background(), tt.zip)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if res.State != "CA" || res.County != tt.county || res.Districts != tt.districts {
				t.Errorf("Resolve() = %+v", res)
			}
			if res.Source != SourceTable || res.Confidence != ConfidenceHigh || len(res.Sources) != 1 {
				t.Errorf("provenance = %s/%s/%v", res.Source, res.Confidence, res.Sources)
			}
			if res.Jurisdiction.Kind != tt.kind || res.Jurisdiction.Municipality != tt.municipality {
				t.Errorf("Jurisdiction = %+v", res.Jurisdiction)
			}
			if res.ResolvedAt.IsZero() {
				t.Error("ResolvedAt not set")
			}
		})
	}
	if n := g.calls.Load(); n != 0 {
		t.Errorf("geocoder called %d times for complete table rows", n)
	}
}

func TestResolveInvalidZIP(t *testing.T) {
	r := newTestResolver(t)
	for _, zip := range []string{"", "abc", "9410", "00000"} {
		if _, err := r.Resolve(context.Background(), zip); !errors.Is(err, ErrInvalidZIP) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidZIP", zip, err)
		}
	}
}

func TestResolveGeocoderComplete(t *testing.T) {
	g := geocoderWith("95018", GeocodeResult{
		City: "Felton", County: "Santa Cruz County", State: "CA",
		Districts: Districts{19, 17, 28}, Latitude: 37.0735, Longitude: -122.0589,
	})
	r := newTestResolver(t, WithGeocoder(g))

	res, err := r.Resolve(context.Background(), "95018")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.County != "Santa Cruz" || res.City != "Felton" || res.Districts != (Districts{19, 17, 28}) {
		t.Errorf("Resolve() = %+v", res)
	}
	if res.Source != SourceGeocoder || res.Confidence != ConfidenceMedium {
		t.Errorf("provenance = %s/%s", res.Source, res.Confidence)
	}
	if res.usedSource(SourceHeuristic) {
		t.Error("heuristic used although geocoder answered completely")
	}
	if res.Jurisdiction.Kind != Unincorporated {
		t.Errorf("Jurisdiction = %+v", res.Jurisdiction)
	}
}

func TestResolveGeocoderCoordinatesOnly(t *testing.T) {
	// Zippopotam-style answer: place and centroid, no county or districts.
	g := geocoderWith("95018", GeocodeResult{
		City: "Felton", State: "CA", Latitude: 36.9741, Longitude: -122.0308,
	})
	r := newTestResolver(t, WithGeocoder(g))

	res, err := r.Resolve(context.Background(), "95018")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.County != "Santa Cruz" || res.Districts != (Districts{19, 17, 28}) {
		t.Errorf("Resolve() = %+v", res)
	}
	if len(res.Sources) != 1 || res.Sources[0] != SourceGeocoder {
		t.Errorf("Sources = %v", res.Sources)
	}
	want := "districts placed from coordinates via nearest ZIP 95060"
	if len(res.Warnings) != 1 || res.Warnings[0] != want {
		t.Errorf("Warnings = %q, want [%q]", res.Warnings, want)
	}
}

func TestResolveHeuristicFallback(t *testing.T) {
	tests := []struct {
		name string
		g    Geocoder
	}{
		{"no geocoder", nil},
		{"no match", &stubGeocoder{name: "stub"}},
		{"upstream down", &stubGeocoder{name: "stub", err: fmt.Errorf("%w: timeout", ErrUpstream)}},
		{"state mismatch", geocoderWith("95018", GeocodeResult{
			City: "Reno", County: "Washoe", State: "NV", Districts: Districts{2, 15, 24},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.g != nil {
				opts = append(opts, WithGeocoder(tt.g))
			}
			r := newTestResolver(t, opts...)
			res, err := r.Resolve(context.Background(), "95018")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if res.Source != SourceHeuristic || res.Confidence != ConfidenceLow {
				t.Errorf("provenance = %s/%s", res.Source, res.Confidence)
			}
			if res.State != "CA" || res.County != "Santa Cruz" || res.Districts != (Districts{19, 17, 28}) {
				t.Errorf("Resolve() = %+v", res)
			}
			if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[len(res.Warnings)-1], "95017-95019") {
				t.Errorf("Warnings = %q", res.Warnings)
			}
			if res.Jurisdiction.Kind != UnknownKind || res.Jurisdiction.ShowMunicipal() {
				t.Errorf("Jurisdiction = %+v", res.Jurisdiction)
			}
		})
	}
}

func TestResolveOutsideCalifornia(t *testing.T) {
	t.Run("no geocoder", func(t *testing.T) {
		r := newTestResolver(t)
		_, err := r.Resolve(context.Background(), "10001")
		if !errors.Is(err, ErrNoCoverage) {
			t.Errorf("error = %v, want ErrNoCoverage", err)
		}
	})
	t.Run("geocoder down", func(t *testing.T) {
		r := newTestResolver(t, WithGeocoder(&stubGeocoder{name: "stub", err: fmt.Errorf("%w: 503", ErrUpstream)}))
		_, err := r.Resolve(context.Background(), "10001")
		if !errors.Is(err, ErrUpstream) {
			t.Errorf("error = %v, want ErrUpstream", err)
		}
	})
	t.Run("geocoder answers", func(t *testing.T) {
		r := newTestResolver(t, WithGeocoder(geocoderWith("10001", GeocodeResult{
			City: "New York", County: "New York County", State: "NY", Districts: Districts{12, 47, 75},
		})))
		res, err := r.Resolve(context.Background(), "10001")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if res.State != "NY" || res.County != "New York" || res.Districts.Congressional != 12 {
			t.Errorf("Resolve() = %+v", res)
		}
		if res.Jurisdiction.Kind != UnknownKind {
			t.Errorf("Jurisdiction = %+v", res.Jurisdiction)
		}
	})
	t.Run("coordinates only", func(t *testing.T) {
		// Stateline sits a few kilometres from South Lake Tahoe; the
		// California centroids must not claim it.
		g := geocoderWith("89449", GeocodeResult{
			City: "Stateline", State: "NV", Latitude: 38.9619, Longitude: -119.9402,
		})
		r := newTestResolver(t, WithGeocoder(g))
		res, err := r.Resolve(context.Background(), "89449")
		if !errors.Is(err, ErrNoCoverage) {
			t.Errorf("Resolve() = %+v, %v, want ErrNoCoverage", res, err)
		}
	})
	t.Run("military ZIP", func(t *testing.T) {
		r := newTestResolver(t)
		if _, err := r.Resolve(context.Background(), "96201"); !errors.Is(err, ErrNoCoverage) {
			t.Errorf("error = %v, want ErrNoCoverage", err)
		}
	})
}

func TestResolveMergePrecedence(t *testing.T) {
	dir := t.TempDir()
	csv := tableHeader + "95018,Felton,Santa Cruz,,19,,,,\n"
	if err := os.WriteFile(filepath.Join(dir, "ca_zips.csv"), []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	g := geocoderWith("95018", GeocodeResult{
		City: "Santa Cruz", County: "Santa Clara", State: "CA", Districts: Districts{18, 17, 28},
	})
	r, err := NewResolver(WithDataDir(dir), WithCacheDir(""), WithGeocoder(g))
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Resolve(context.Background(), "95018")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// Table fields stand; the geocoder only fills the gaps.
	if res.City != "Felton" || res.County != "Santa Cruz" || res.Districts != (Districts{19, 17, 28}) {
		t.Errorf("Resolve() = %+v", res)
	}
	if res.Source != SourceTable || res.Confidence != ConfidenceMedium {
		t.Errorf("provenance = %s/%s", res.Source, res.Confidence)
	}
	if len(res.Sources) != 2 || res.Sources[1] != SourceGeocoder {
		t.Errorf("Sources = %v", res.Sources)
	}
}

func TestResolveCacheTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := &stubGeocoder{name: "stub"}
	r := newTestResolver(t, WithGeocoder(g), withClock(clock.Now),
		WithCache(100, time.Hour, time.Minute))
	ctx := context.Background()

	first, err := r.Resolve(ctx, "95018")
	if err != nil {
		t.Fatal(err)
	}
	first.County = "mutated"
	first.Warnings[0] = "mutated"

	again, err := r.Resolve(ctx, "95018")
	if err != nil {
		t.Fatal(err)
	}
	if g.calls.Load() != 1 {
		t.Errorf("geocoder calls = %d, want 1 while cached", g.calls.Load())
	}
	if again.County != "Santa Cruz" || again.Warnings[0] == "mutated" {
		t.Errorf("cached result was shared with caller: %+v", again)
	}

	if _, err := r.Resolve(ctx, "94102"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := r.Resolve(ctx, "95018"); err != nil {
		t.Fatal(err)
	}
	if g.calls.Load() != 2 {
		t.Errorf("geocoder calls = %d, want 2 after heuristic TTL", g.calls.Load())
	}
	res, err := r.Resolve(ctx, "94102")
	if err != nil {
		t.Fatal(err)
	}
	if !res.ResolvedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("table result re-resolved before its TTL: %v", res.ResolvedAt)
	}
	if n := r.cache.len(); n != 2 {
		t.Errorf("cache holds %d entries, want 2", n)
	}
}

func TestResultCacheEvictsOldest(t *testing.T) {
	now := time.Now()
	c := newResultCache(2, func() time.Time { return now })
	c.put(&Resolution{ZIP: "94102"}, time.Hour)
	c.put(&Resolution{ZIP: "94103"}, time.Hour)
	c.get("94102")
	c.put(&Resolution{ZIP: "94104"}, time.Hour)
	if _, ok := c.get("94103"); ok {
		t.Error("least recently used entry not evicted")
	}
	if _, ok := c.get("94102"); !ok {
		t.Error("recently used entry evicted")
	}
	c.put(&Resolution{ZIP: "94105"}, 0)
	if _, ok := c.get("94105"); ok {
		t.Error("zero TTL entry cached")
	}
}

// blockingGeocoder holds every call until release is closed.
type blockingGeocoder struct {
	stubGeocoder
	release chan struct{}
}

func (b *blockingGeocoder) Geocode(ctx context.Context, zip string) (*GeocodeResult, error) {
	<-b.release
	return b.stubGeocoder.Geocode(ctx, zip)
}

func TestResolveCoalescesConcurrentLookups(t *testing.T) {
	g := &blockingGeocoder{
		stubGeocoder: stubGeocoder{name: "slow", results: map[string]*GeocodeResult{
			"95018": {ZIP: "95018", City: "Felton", County: "Santa Cruz", State: "CA", Districts: Districts{19, 17, 28}},
		}},
		release: make(chan struct{}),
	}
	r := newTestResolver(t, WithGeocoder(g))

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), "95018")
			if err == nil && res.City != "Felton" {
				err = fmt.Errorf("unexpected result %+v", res)
			}
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(g.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
	if calls := g.calls.Load(); calls != 1 {
		t.Errorf("geocoder called %d times, want 1", calls)
	}
}

func TestResolveCallerCancelDoesNotFailOthers(t *testing.T) {
	g := &blockingGeocoder{
		stubGeocoder: stubGeocoder{name: "slow", results: map[string]*GeocodeResult{
			"89501": {ZIP: "89501", City: "Reno", County: "Washoe", State: "NV", Districts: Districts{2, 15, 24}},
		}},
		release: make(chan struct{}),
	}
	r := newTestResolver(t, WithGeocoder(g))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctxA, "89501")
		errA <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type result struct {
		res *Resolution
		err error
	}
	doneB := make(chan result, 1)
	go func() {
		res, err := r.Resolve(context.Background(), "89501")
		doneB <- result{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting on the shared lookup")
	}

	close(g.release)
	b := <-doneB
	if b.err != nil {
		t.Fatalf("other caller error = %v", b.err)
	}
	if b.res.County != "Washoe" || b.res.Districts.Congressional != 2 {
		t.Errorf("other caller got %+v", b.res)
	}
	if calls := g.calls.Load(); calls != 1 {
		t.Errorf("geocoder called %d times, want 1", calls)
	}
}

func TestResolveLookupTimeout(t *testing.T) {
	g := &ctxGeocoder{}
	r := newTestResolver(t, WithGeocoder(g), WithLookupTimeout(20*time.Millisecond))
	_, err := r.Resolve(context.Background(), "89501")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

// ctxGeocoder blocks until its context ends.
type ctxGeocoder struct{}

func (ctxGeocoder) Name() string { return "ctx" }

func (ctxGeocoder) Geocode(ctx context.Context, zip string) (*GeocodeResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// memStore is an in-memory ResultStore.
type memStore struct {
	mu   sync.Mutex
	m    map[string]*Resolution
	puts int
}

func newMemStore() *memStore { return &memStore{m: make(map[string]*Resolution)} }

func (s *memStore) Get(ctx context.Context, zip string) (*Resolution, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.m[zip]
	if !ok {
		return nil, false, nil
	}
	return res.clone(), true, nil
}

func (s *memStore) Put(ctx context.Context, res *Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[res.ZIP] = res.clone()
	s.puts++
	return nil
}

func TestResolvePersistsGeocodedResults(t *testing.T) {
	store := newMemStore()
	g := geocoderWith("95018", GeocodeResult{
		City: "Felton", County: "Santa Cruz County", State: "CA", Districts: Districts{19, 17, 28},
	})
	r := newTestResolver(t, WithGeocoder(g), WithStore(store))
	if _, err := r.Resolve(context.Background(), "95018"); err != nil {
		t.Fatal(err)
	}
	if store.puts != 1 {
		t.Fatalf("store puts = %d, want 1", store.puts)
	}
	if stored := store.m["95018"]; stored.County != "Santa Cruz" || stored.ResolvedAt.IsZero() {
		t.Errorf("stored = %+v", stored)
	}

	// A fresh resolver answers from the store without asking the geocoder.
	down := &stubGeocoder{name: "down", err: ErrUpstream}
	r2 := newTestResolver(t, WithGeocoder(down), WithStore(store))
	res, err := r2.Resolve(context.Background(), "95018")
	if err != nil {
		t.Fatal(err)
	}
	if down.calls.Load() != 0 {
		t.Error("geocoder called despite stored result")
	}
	if res.Source != SourceGeocoder || res.City != "Felton" || res.Districts.Congressional != 19 {
		t.Errorf("Resolve() = %+v", res)
	}
}

func TestResolveDoesNotPersistHeuristics(t *testing.T) {
	store := newMemStore()
	r := newTestResolver(t, WithGeocoder(&stubGeocoder{name: "stub"}), WithStore(store))
	for _, zip := range []string{"95018", "94102"} {
		if _, err := r.Resolve(context.Background(), zip); err != nil {
			t.Fatal(err)
		}
	}
	if store.puts != 0 {
		t.Errorf("store puts = %d, want 0", store.puts)
	}
}

func TestGetDefaultResolver(t *testing.T) {
	r1, err := GetDefaultResolver()
	if err != nil {
		t.Fatalf("GetDefaultResolver() error = %v", err)
	}
	r2, _ := GetDefaultResolver()
	if r1 != r2 {
		t.Error("GetDefaultResolver() returned different instances")
	}
	if r1.geocoder != nil {
		t.Error("default resolver should be offline")
	}
}

func TestMergeTreatsPlaceholdersAsEmpty(t *testing.T) {
	res := &Resolution{ZIP: "95018"}
	res.merge(partial{City: "Unknown", County: "TBD", Districts: Districts{Congressional: 19}, Confidence: ConfidenceHigh}, SourceTable)
	if res.City != "" || res.County != "" {
		t.Errorf("placeholder merged: %+v", res)
	}
	if !res.merge(partial{City: "Felton", County: "Santa Cruz", Confidence: ConfidenceLow}, SourceHeuristic) {
		t.Fatal("merge() reported no contribution")
	}
	if res.Source != SourceTable || res.Confidence != ConfidenceLow || res.Districts.Congressional != 19 {
		t.Errorf("merge() = %+v", res)
	}
	if res.merge(partial{City: "Other", Confidence: ConfidenceHigh}, SourceGeocoder) {
		t.Error("merge() overwrote a set field")
	}
	if res.Confidence != ConfidenceLow {
		t.Errorf("non-contributing merge changed confidence to %s", res.Confidence)
	}
}
