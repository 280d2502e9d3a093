package civix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNoMatch is returned by a Geocoder that answered but knows no such ZIP.
	ErrNoMatch = errors.New("geocoder: no match")
	// ErrUpstream wraps failures talking to a geocoding service.
	ErrUpstream = errors.New("geocoder: upstream failure")
)

// GeocodeResult is a geocoder's answer for a ZIP. Providers fill what they
// know; zero fields are unknown.
type GeocodeResult struct {
	ZIP       string
	City      string
	County    string
	State     string // two-letter postal code
	Districts Districts
	Latitude  float64
	Longitude float64
	Provider  string
}

func (g *GeocodeResult) hasCoordinates() bool {
	return g.Latitude != 0 || g.Longitude != 0
}

// Geocoder looks up a normalized 5-digit ZIP in an external service.
type Geocoder interface {
	Geocode(ctx context.Context, zip string) (*GeocodeResult, error)
	Name() string
}

// GeocoderChain tries each geocoder in order. The first answer carrying a
// congressional district wins; failing that, the first answer with anything
// useful is returned.
type GeocoderChain []Geocoder

// Name implements Geocoder.
func (c GeocoderChain) Name() string {
	names := make([]string, len(c))
	for i, g := range c {
		names[i] = g.Name()
	}
	return strings.Join(names, ",")
}

// Geocode implements Geocoder. If every geocoder failed, the last upstream
// error is returned; if they all simply had no match, ErrNoMatch.
func (c GeocoderChain) Geocode(ctx context.Context, zip string) (*GeocodeResult, error) {
	var (
		fallback *GeocodeResult
		lastErr  error
	)
	for _, g := range c {
		res, err := g.Geocode(ctx, zip)
		if err != nil {
			if !errors.Is(err, ErrNoMatch) {
				lastErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res.Districts.Congressional > 0 {
			return res, nil
		}
		if fallback == nil && (res.County != "" || res.hasCoordinates()) {
			fallback = res
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, zip)
}

// RetryPolicy configures exponential backoff for geocoder requests.
type RetryPolicy struct {
	MaxRetries     int           // retries after the first attempt
	InitialBackoff time.Duration // delay before the first retry
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns the policy geocoders use unless told otherwise.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.url, e.code)
}

// retryable reports whether err is worth another attempt: server errors,
// throttling, and network failures. 4xx answers will not change.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// do runs fn until it succeeds, fails permanently, or retries run out.
func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	backoff := p.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", p.MaxRetries, lastErr)
}

// maxResponseBytes caps geocoder response bodies.
const maxResponseBytes = 1 << 20

// httpGeocoder is the transport shared by the HTTP geocoders.
type httpGeocoder struct {
	client    *http.Client
	baseURL   string
	retry     RetryPolicy
	userAgent string
}

func newHTTPGeocoder(baseURL string) httpGeocoder {
	return httpGeocoder{
		client:    &http.Client{Timeout: 10 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		retry:     DefaultRetryPolicy(),
		userAgent: "civix/1.0",
	}
}

// getJSON fetches url into v. A 404 is reported as ErrNoMatch; other
// failures wrap ErrUpstream.
func (h httpGeocoder) getJSON(ctx context.Context, url string, v interface{}) error {
	err := h.retry.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", h.userAgent)
		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
			return &statusError{code: resp.StatusCode, url: url}
		}
		return json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v)
	})
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return ErrNoMatch
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// GeocoderOption configures the HTTP geocoders.
type GeocoderOption func(*httpGeocoder)

// WithBaseURL points a geocoder at a different endpoint.
func WithBaseURL(u string) GeocoderOption {
	return func(h *httpGeocoder) {
		h.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) GeocoderOption {
	return func(h *httpGeocoder) {
		h.client = c
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) GeocoderOption {
	return func(h *httpGeocoder) {
		h.retry = p
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) GeocoderOption {
	return func(h *httpGeocoder) {
		h.client = &http.Client{Timeout: d}
	}
}
