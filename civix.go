// Package civix resolves US ZIP codes to the political jurisdictions that
// cover them: county, congressional district, state senate and assembly
// districts, and whether the place is an incorporated city.
//
// Resolution walks a fallback chain. A hand-curated California table answers
// most lookups; misses go to an external geocoder, and when that fails too a
// ZIP range heuristic produces a low-confidence guess. Later steps only fill
// fields the earlier ones left empty.
//
//	r, err := civix.NewResolver(civix.WithGeocoder(civix.NewCensusGeocoder(nil)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := r.Resolve(ctx, "94102")
//	fmt.Println(res.County, res.Districts.Congressional)
package civix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config contains configuration options for a Resolver.
type Config struct {
	DataDir  string // Directory for data file overrides (default: "./civix-data")
	CacheDir string // Directory for the table snapshot (default: "./civix-cache")

	Logger     *zap.Logger
	Geocoder   Geocoder    // nil disables the geocoding step
	Boundaries *Boundaries // optional district polygons
	Store      ResultStore // optional second-tier cache for geocoded results

	CacheSize    int           // in-memory cache entries; 0 disables the cache
	CacheTTL     time.Duration // lifetime of table and geocoder results
	HeuristicTTL time.Duration // lifetime of results that used the range heuristic

	// LookupTimeout bounds a shared lookup. Coalesced callers do not share
	// cancellation, so the work runs detached from any one caller's context.
	LookupTimeout time.Duration

	now func() time.Time
}

// Option is a functional option for configuring a Resolver.
type Option func(*Config)

// WithDataDir sets the directory searched for data files before the embedded copies.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithCacheDir sets the directory holding the table snapshot.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.CacheDir = dir
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithGeocoder enables the geocoding step.
func WithGeocoder(g Geocoder) Option {
	return func(c *Config) {
		c.Geocoder = g
	}
}

// WithBoundaries sets district polygons used to place geocoded coordinates.
func WithBoundaries(b *Boundaries) Option {
	return func(c *Config) {
		c.Boundaries = b
	}
}

// WithStore sets a persistent store for geocoded results.
func WithStore(s ResultStore) Option {
	return func(c *Config) {
		c.Store = s
	}
}

// WithCache sizes the in-memory result cache and sets its lifetimes.
func WithCache(size int, ttl, heuristicTTL time.Duration) Option {
	return func(c *Config) {
		c.CacheSize = size
		c.CacheTTL = ttl
		c.HeuristicTTL = heuristicTTL
	}
}

// WithLookupTimeout bounds how long one shared lookup may run.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.LookupTimeout = d
	}
}

func defaultConfig() *Config {
	return &Config{
		DataDir:       "./civix-data",
		CacheDir:      "./civix-cache",
		Logger:        zap.NewNop(),
		CacheSize:     10000,
		CacheTTL:      24 * time.Hour,
		HeuristicTTL:  10 * time.Minute,
		LookupTimeout: 30 * time.Second,
		now:           time.Now,
	}
}

func newConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ResultStore persists resolutions between process restarts. Only geocoded
// results are stored; table answers are cheap to recompute and heuristic
// answers are not worth keeping.
type ResultStore interface {
	Get(ctx context.Context, zip string) (*Resolution, bool, error)
	Put(ctx context.Context, res *Resolution) error
}

// Resolver maps ZIP codes to jurisdictions. Safe for concurrent use.
type Resolver struct {
	table      *Table
	classifier *Classifier
	roster     *Roster
	locator    *locator
	geocoder   Geocoder
	store      ResultStore
	cache      *resultCache
	group      singleflight.Group
	config     *Config
	log        *zap.Logger
}

// Singleton pattern for the default Resolver.
var (
	defaultResolver     *Resolver
	defaultResolverOnce sync.Once
	defaultResolverErr  error
)

// GetDefaultResolver returns a shared offline Resolver (table and heuristic
// only), initializing it on first call.
func GetDefaultResolver() (*Resolver, error) {
	defaultResolverOnce.Do(func() {
		defaultResolver, defaultResolverErr = NewResolver()
	})
	return defaultResolver, defaultResolverErr
}

// NewResolver loads the data sets and returns a ready Resolver.
func NewResolver(opts ...Option) (*Resolver, error) {
	cfg := newConfig(opts)

	table, err := loadTable(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load ZIP table: %w", err)
	}
	classifier, err := loadClassifier(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load places: %w", err)
	}
	roster, err := loadRoster(cfg.DataDir, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load officials: %w", err)
	}

	r := &Resolver{
		table:      table,
		classifier: classifier,
		roster:     roster,
		locator:    newLocator(cfg.Boundaries, newCentroidIndex(table.Records())),
		geocoder:   cfg.Geocoder,
		store:      cfg.Store,
		config:     cfg,
		log:        cfg.Logger,
	}
	if cfg.CacheSize > 0 {
		r.cache = newResultCache(cfg.CacheSize, cfg.now)
	}
	cfg.Logger.Info("resolver ready",
		zap.Int("zips", table.Len()),
		zap.Int("counties", classifier.Counties()),
		zap.Bool("geocoder", cfg.Geocoder != nil),
		zap.Bool("boundaries", cfg.Boundaries != nil))
	return r, nil
}

// Table returns the static lookup table.
func (r *Resolver) Table() *Table { return r.table }

// Classifier returns the jurisdiction classifier.
func (r *Resolver) Classifier() *Classifier { return r.classifier }

// Roster returns the officials roster.
func (r *Resolver) Roster() *Roster { return r.roster }

// Resolve returns the jurisdictions for zip, which may be "NNNNN" or
// "NNNNN-NNNN". Invalid input yields ErrInvalidZIP; a valid ZIP nothing could
// place yields ErrNoCoverage, or an error wrapping ErrUpstream when the
// geocoder failed rather than answered "no match".
func (r *Resolver) Resolve(ctx context.Context, zip string) (*Resolution, error) {
	z, err := NormalizeZIP(zip)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if res, ok := r.cache.get(z); ok {
			return res.clone(), nil
		}
	}
	ch := r.group.DoChan(z, func() (interface{}, error) {
		lookupCtx, cancel := r.detach(ctx)
		defer cancel()
		return r.resolve(lookupCtx, z)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return nil, out.Err
		}
		if out.Shared {
			r.log.Debug("coalesced resolution", zap.String("zip", z))
		}
		return out.Val.(*Resolution).clone(), nil
	}
}

// detach keeps ctx's values but not its cancellation, so one caller giving up
// does not fail the others waiting on the same lookup.
func (r *Resolver) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if r.config.LookupTimeout > 0 {
		return context.WithTimeout(ctx, r.config.LookupTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Resolver) resolve(ctx context.Context, zip string) (*Resolution, error) {
	res := &Resolution{ZIP: zip, State: StateForZIP(zip)}
	inCA := IsCaliforniaZIP(zip)
	log := r.log.With(zap.String("zip", zip))

	if inCA {
		if rec, ok := r.table.Lookup(zip); ok {
			res.merge(rec.partial(), SourceTable)
		}
	}

	var upstreamErr error
	if !res.Complete() {
		upstreamErr = r.geocode(ctx, res, log)
	}

	if inCA && !res.Complete() {
		if g, ok := GuessRange(zip); ok {
			if res.merge(g.partial(), SourceHeuristic) {
				log.Info("range heuristic used", zap.String("county", res.County))
			}
		}
	}

	if !res.Usable() {
		if upstreamErr != nil {
			return nil, upstreamErr
		}
		return nil, fmt.Errorf("%w: %s", ErrNoCoverage, zip)
	}

	res.County = r.canonicalCounty(res.County)
	res.Jurisdiction = r.classify(res)
	res.ResolvedAt = r.config.now().UTC()

	if r.cache != nil {
		ttl := r.config.CacheTTL
		if res.usedSource(SourceHeuristic) {
			ttl = r.config.HeuristicTTL
		}
		r.cache.put(res.clone(), ttl)
	}
	return res, nil
}

// geocode consults the persistent store and then the geocoder. It returns the
// upstream error, if any, so Resolve can report it when nothing else answers.
func (r *Resolver) geocode(ctx context.Context, res *Resolution, log *zap.Logger) error {
	if r.store != nil {
		stored, ok, err := r.store.Get(ctx, res.ZIP)
		if err != nil {
			log.Warn("result store read failed", zap.Error(err))
		} else if ok {
			res.merge(partialFromResolution(stored), SourceGeocoder)
			return nil
		}
	}
	if r.geocoder == nil {
		return nil
	}

	gr, err := r.geocoder.Geocode(ctx, res.ZIP)
	switch {
	case errors.Is(err, ErrNoMatch):
		log.Debug("geocoder has no match", zap.String("geocoder", r.geocoder.Name()))
		return nil
	case err != nil:
		log.Warn("geocoder failed", zap.String("geocoder", r.geocoder.Name()), zap.Error(err))
		return err
	}
	if gr.State != "" && res.State != "" && !strings.EqualFold(gr.State, res.State) {
		log.Warn("geocoder state disagrees with ZIP prefix",
			zap.String("prefix_state", res.State), zap.String("geocoder_state", gr.State))
		return nil
	}
	if res.State == "" {
		res.State = toUpper(gr.State)
	}

	p := r.geocodePartial(gr, res.State == "CA")
	if res.merge(p, SourceGeocoder) && r.store != nil && !res.usedSource(SourceHeuristic) {
		snapshot := res.clone()
		snapshot.County = r.canonicalCounty(snapshot.County)
		snapshot.ResolvedAt = r.config.now().UTC()
		if err := r.store.Put(ctx, snapshot); err != nil {
			log.Warn("result store write failed", zap.Error(err))
		}
	}
	return nil
}

// geocodePartial turns a geocoder answer into a partial, filling districts
// from coordinates when the provider returned none. The locator only knows
// California, so coordinates elsewhere are never placed.
func (r *Resolver) geocodePartial(gr *GeocodeResult, inCA bool) partial {
	p := partial{
		City:       gr.City,
		County:     gr.County,
		Districts:  gr.Districts,
		Latitude:   gr.Latitude,
		Longitude:  gr.Longitude,
		Confidence: ConfidenceMedium,
	}
	if !inCA || gr.Districts.Complete() || (gr.Latitude == 0 && gr.Longitude == 0) {
		return p
	}
	loc, ok := r.locator.locate(gr.Latitude, gr.Longitude)
	if !ok {
		return p
	}
	filled := false
	fill := func(dst *int, v int) {
		if *dst == 0 && v > 0 {
			*dst = v
			filled = true
		}
	}
	fill(&p.Districts.Congressional, loc.Districts.Congressional)
	fill(&p.Districts.StateSenate, loc.Districts.StateSenate)
	fill(&p.Districts.Assembly, loc.Districts.Assembly)
	if p.County == "" && loc.County != "" {
		p.County = loc.County
		filled = true
	}
	if filled {
		p.Warning = fmt.Sprintf("districts placed from coordinates via %s", loc.Method)
	}
	return p
}

func (r *Resolver) canonicalCounty(county string) string {
	if c, ok := r.classifier.CanonicalCounty(county); ok {
		return c
	}
	return strings.TrimSuffix(strings.TrimSpace(county), " County")
}

// classify tries the governing place first and the postal city second, since
// a table row's community is more specific than the USPS city name.
func (r *Resolver) classify(res *Resolution) Jurisdiction {
	j := r.classifier.Classify(res.Place(), res.County)
	if j.Kind == UnknownKind && res.Community != "" && res.City != "" {
		if alt := r.classifier.Classify(res.City, res.County); alt.Kind != UnknownKind {
			return alt
		}
	}
	return j
}

// Officials resolves zip and returns the officials representing it.
func (r *Resolver) Officials(ctx context.Context, zip string) (*Resolution, []Official, error) {
	res, err := r.Resolve(ctx, zip)
	if err != nil {
		return nil, nil, err
	}
	return res, r.roster.For(res), nil
}

// toLower and toUpper wrap the Unicode-aware standard library conversions;
// place names such as "La Cañada Flintridge" are not ASCII.
func toLower(s string) string {
	return strings.ToLower(s)
}

func toUpper(s string) string {
	return strings.ToUpper(s)
}
