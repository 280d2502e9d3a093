package server

import (
	"context"
	"errors"
	"time"

	"github.com/bison808/civix"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	resolutions      *prometheus.CounterVec
	resolutionErrors *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	geocoderRequests *prometheus.CounterVec
	geocoderDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry, along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civix_resolutions_total",
				Help: "ZIP resolutions by primary source and confidence",
			},
			[]string{"source", "confidence"},
		),
		resolutionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civix_resolution_errors_total",
				Help: "Failed ZIP resolutions by reason",
			},
			[]string{"reason"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civix_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "civix_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		geocoderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civix_geocoder_requests_total",
				Help: "Geocoder calls by provider and outcome (hit, miss, error)",
			},
			[]string{"geocoder", "outcome"},
		),
		geocoderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "civix_geocoder_duration_seconds",
				Help:    "Geocoder call latency by provider",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"geocoder"},
		),
	}
	m.Registry.MustRegister(
		m.resolutions, m.resolutionErrors,
		m.httpRequests, m.httpDuration,
		m.geocoderRequests, m.geocoderDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observeResolution(res *civix.Resolution) {
	m.resolutions.WithLabelValues(string(res.Source), string(res.Confidence)).Inc()
}

func (m *Metrics) observeError(err error) {
	m.resolutionErrors.WithLabelValues(errorReason(err)).Inc()
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, civix.ErrInvalidZIP):
		return "invalid"
	case errors.Is(err, civix.ErrNoCoverage):
		return "no_coverage"
	case errors.Is(err, civix.ErrUpstream):
		return "upstream"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "internal"
}

// instrumentedGeocoder records call counts and latency for a geocoder.
type instrumentedGeocoder struct {
	civix.Geocoder
	m *Metrics
}

// InstrumentGeocoder wraps g so its calls are recorded in m.
func (m *Metrics) InstrumentGeocoder(g civix.Geocoder) civix.Geocoder {
	return &instrumentedGeocoder{Geocoder: g, m: m}
}

func (g *instrumentedGeocoder) Geocode(ctx context.Context, zip string) (*civix.GeocodeResult, error) {
	start := time.Now()
	res, err := g.Geocoder.Geocode(ctx, zip)
	g.m.geocoderDuration.WithLabelValues(g.Name()).Observe(time.Since(start).Seconds())
	outcome := "hit"
	switch {
	case errors.Is(err, civix.ErrNoMatch):
		outcome = "miss"
	case err != nil:
		outcome = "error"
	}
	g.m.geocoderRequests.WithLabelValues(g.Name(), outcome).Inc()
	return res, err
}
