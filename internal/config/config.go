// Package config loads civix binary configuration from a YAML file, CIVIX_
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bison808/civix"
	"github.com/bison808/civix/internal/server"
	"github.com/bison808/civix/internal/store"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes environment overrides: CIVIX_SERVER_ADDR sets server.addr.
const EnvPrefix = "CIVIX"

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per client IP; 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"` // IPs or CIDRs whose X-Forwarded-For is believed
}

type Cache struct {
	Size         int           `mapstructure:"size"`
	TTL          time.Duration `mapstructure:"ttl"`
	HeuristicTTL time.Duration `mapstructure:"heuristic_ttl"`
}

type Geocoder struct {
	Providers []string      `mapstructure:"providers"` // census, zippopotam; empty disables
	Timeout   time.Duration `mapstructure:"timeout"`
	Retries   int           `mapstructure:"retries"`
}

type Store struct {
	Path   string        `mapstructure:"path"` // empty disables the persistent store
	MaxAge time.Duration `mapstructure:"max_age"`
}

type Boundaries struct {
	Path string `mapstructure:"path"`
}

// Config is the full binary configuration.
type Config struct {
	DataDir    string     `mapstructure:"data_dir"`
	CacheDir   string     `mapstructure:"cache_dir"`
	Log        Log        `mapstructure:"log"`
	Server     Server     `mapstructure:"server"`
	Cache      Cache      `mapstructure:"cache"`
	Geocoder   Geocoder   `mapstructure:"geocoder"`
	Store      Store      `mapstructure:"store"`
	Boundaries Boundaries `mapstructure:"boundaries"`
}

// SetDefaults registers every key's default on v so environment variables
// bind even when no config file mentions the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./civix-data")
	v.SetDefault("cache_dir", "./civix-cache")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("cache.size", 10000)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.heuristic_ttl", 10*time.Minute)
	v.SetDefault("geocoder.providers", []string{"census", "zippopotam"})
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.retries", 2)
	v.SetDefault("store.path", "")
	v.SetDefault("store.max_age", 30*24*time.Hour)
	v.SetDefault("boundaries.path", "")
}

// Load reads configuration into a Config. A missing file at path is an
// error; an empty path searches ./civix.yaml and $HOME/.civix/config.yaml
// and tolerates neither existing.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("civix")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.civix")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the binaries cannot run with.
func (c *Config) Validate() error {
	for _, p := range c.Geocoder.Providers {
		switch strings.ToLower(p) {
		case "census", "zippopotam":
		default:
			return fmt.Errorf("geocoder.providers: unknown provider %q", p)
		}
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("server.rate_limit and server.rate_burst must not be negative")
	}
	if _, err := server.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	if c.Cache.Size < 0 {
		return errors.New("cache.size must not be negative")
	}
	if c.Geocoder.Retries < 0 {
		return errors.New("geocoder.retries must not be negative")
	}
	return nil
}

// Geocoders builds the configured geocoder chain, or nil when none is set.
// wrap, if non-nil, is applied to each geocoder (for instrumentation).
func (c *Config) Geocoders(wrap func(civix.Geocoder) civix.Geocoder) civix.Geocoder {
	policy := civix.DefaultRetryPolicy()
	policy.MaxRetries = c.Geocoder.Retries
	opts := []civix.GeocoderOption{
		civix.WithTimeout(c.Geocoder.Timeout),
		civix.WithRetryPolicy(policy),
	}
	var chain civix.GeocoderChain
	for _, p := range c.Geocoder.Providers {
		var g civix.Geocoder
		switch strings.ToLower(p) {
		case "census":
			g = civix.NewCensusGeocoder(civix.NewZippopotamGeocoder(opts...), opts...)
		case "zippopotam":
			g = civix.NewZippopotamGeocoder(opts...)
		default:
			continue
		}
		if wrap != nil {
			g = wrap(g)
		}
		chain = append(chain, g)
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ResolverOptions turns the configuration into resolver options. The returned
// Closer releases the persistent store, if one was opened.
func (c *Config) ResolverOptions(logger *zap.Logger, wrap func(civix.Geocoder) civix.Geocoder) ([]civix.Option, io.Closer, error) {
	opts := []civix.Option{
		civix.WithDataDir(c.DataDir),
		civix.WithCacheDir(c.CacheDir),
		civix.WithLogger(logger),
		civix.WithCache(c.Cache.Size, c.Cache.TTL, c.Cache.HeuristicTTL),
	}
	if g := c.Geocoders(wrap); g != nil {
		opts = append(opts, civix.WithGeocoder(g))
	}
	if c.Boundaries.Path != "" {
		b, err := civix.LoadBoundaries(c.Boundaries.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("boundaries loaded", zap.String("path", c.Boundaries.Path), zap.Int("shapes", b.Len()))
		opts = append(opts, civix.WithBoundaries(b))
	}
	var closer io.Closer = nopCloser{}
	if c.Store.Path != "" {
		s, err := store.New(c.Store.Path, c.Store.MaxAge)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, civix.WithStore(s))
		closer = s
	}
	return opts, closer, nil
}
