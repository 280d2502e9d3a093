// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/bison808/civix"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Resolver is the subset of *civix.Resolver the server uses.
type Resolver interface {
	Resolve(ctx context.Context, zip string) (*civix.Resolution, error)
	Officials(ctx context.Context, zip string) (*civix.Resolution, []civix.Official, error)
	SearchCity(name string, fuzzy bool) []civix.CityMatch
}

// Options configures a Server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       float64 // per client IP; 0 disables
	RateBurst       int
	TrustedProxies  []netip.Prefix // peers whose X-Forwarded-For is believed
}

// Server is the HTTP API.
type Server struct {
	resolver Resolver
	metrics  *Metrics
	limiter  *Limiter
	log      *zap.Logger
	opts     Options
	router   *mux.Router
}

// New builds the router. metrics may be shared with instrumented geocoders.
func New(resolver Resolver, metrics *Metrics, logger *zap.Logger, opts Options) *Server {
	s := &Server{
		resolver: resolver,
		metrics:  metrics,
		log:      logger,
		opts:     opts,
		router:   mux.NewRouter(),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = NewLimiter(opts.RateLimit, burst)
	}
	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes registers the API on r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Use(requestIDMiddleware, s.observeMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	if s.limiter != nil {
		api.Use(s.limiter.Middleware(NewIPKeyFunc(s.opts.TrustedProxies)))
	}
	api.HandleFunc("/districts/{zip}", s.handleDistricts).Methods("GET")
	api.HandleFunc("/officials/{zip}", s.handleOfficials).Methods("GET")
	api.HandleFunc("/cities", s.handleCities).Methods("GET")

	// mux skips r.Use middleware for unmatched requests.
	r.NotFoundHandler = requestIDMiddleware(s.observeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})))
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	if s.limiter != nil {
		go func() {
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					s.limiter.Cleanup(10 * time.Minute)
				}
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type districtsResponse struct {
	*civix.Resolution
	ShowMunicipal bool `json:"show_municipal"`
}

type officialsResponse struct {
	Resolution *civix.Resolution `json:"resolution"`
	Officials  []civix.Official  `json:"officials"`
}

type citiesResponse struct {
	Query   string            `json:"query"`
	Fuzzy   bool              `json:"fuzzy"`
	Matches []civix.CityMatch `json:"matches"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

// statusFor maps resolver errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, civix.ErrInvalidZIP):
		return http.StatusBadRequest
	case errors.Is(err, civix.ErrNoCoverage):
		return http.StatusNotFound
	case errors.Is(err, civix.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) resolveError(w http.ResponseWriter, r *http.Request, err error) {
	s.metrics.observeError(err)
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("resolve failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		msg = "internal error"
	}
	writeError(w, r, status, msg)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolver.Resolve(r.Context(), mux.Vars(r)["zip"])
	if err != nil {
		s.resolveError(w, r, err)
		return
	}
	s.metrics.observeResolution(res)
	writeJSON(w, http.StatusOK, districtsResponse{Resolution: res, ShowMunicipal: res.Jurisdiction.ShowMunicipal()})
}

func (s *Server) handleOfficials(w http.ResponseWriter, r *http.Request) {
	res, officials, err := s.resolver.Officials(r.Context(), mux.Vars(r)["zip"])
	if err != nil {
		s.resolveError(w, r, err)
		return
	}
	s.metrics.observeResolution(res)
	if officials == nil {
		officials = []civix.Official{}
	}
	writeJSON(w, http.StatusOK, officialsResponse{Resolution: res, Officials: officials})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "missing name parameter")
		return
	}
	fuzzy := false
	if v := r.URL.Query().Get("fuzzy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
		fuzzy = b
	}
	matches := s.resolver.SearchCity(name, fuzzy)
	if matches == nil {
		matches = []civix.CityMatch{}
	}
	writeJSON(w, http.StatusOK, citiesResponse{Query: name, Fuzzy: fuzzy, Matches: matches})
}
