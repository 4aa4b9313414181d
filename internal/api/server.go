/*
Package api exposes the query service over HTTP.

Routes live under /api/{version}:

	POST /ask-jiji   answer a learning query (optional bearer auth)
	GET  /history    recent queries of the authenticated user
	GET  /health     liveness

Every response body is a JSON envelope with a success flag. Requests pass
through panic recovery, security headers, CORS, per-client rate limiting and
a body size limit before they reach a handler.
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/learnwithjiji/jiji/internal/auth"
	"github.com/learnwithjiji/jiji/internal/metrics"
	"github.com/learnwithjiji/jiji/internal/service"
	"github.com/learnwithjiji/jiji/internal/storage"
)

// Defaults applied when an option is not given.
const (
	DefaultAPIVersion      = "v1"
	DefaultBodyLimit       = 10 << 20
	DefaultShutdownTimeout = 10 * time.Second
)

// QueryService is the orchestrator behind the routes.
type QueryService interface {
	ProcessQuery(ctx context.Context, query, userID string) (*service.AnswerResponse, error)
	GetQueryHistory(ctx context.Context, userID string, limit int) ([]storage.QueryRecord, error)
}

// Server routes HTTP requests to a QueryService.
type Server struct {
	svc      QueryService
	resolver auth.Resolver
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	production     bool
	apiVersion     string
	allowedOrigins []string
	bodyLimit      int64
	limiter        *rateLimiter

	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	router  *mux.Router
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithResolver sets the bearer token resolver. Without one every request
// is anonymous.
func WithResolver(r auth.Resolver) Option {
	return func(s *Server) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithMetrics enables request instrumentation and the /metrics route.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithProduction hides internal error details from clients and disables
// request logging.
func WithProduction(production bool) Option {
	return func(s *Server) { s.production = production }
}

// WithAPIVersion sets the version segment of the base path.
func WithAPIVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.apiVersion = v
		}
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithBodyLimit caps request bodies, in bytes.
func WithBodyLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.bodyLimit = n
		}
	}
}

// WithRateLimit allows max requests per client IP and window. A
// non-positive max disables limiting.
func WithRateLimit(window time.Duration, max int) Option {
	return func(s *Server) {
		if max <= 0 || window <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = newRateLimiter(window, max)
	}
}

// WithTimeouts sets the http.Server read and write timeouts and the grace
// period of a shutdown. Zero values keep the defaults.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// WithClock overrides the clock used for timestamps and rate limiting.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Server.
func New(svc QueryService, opts ...Option) *Server {
	s := &Server{
		svc:             svc,
		resolver:        auth.Anonymous{},
		logger:          zap.NewNop(),
		now:             time.Now,
		apiVersion:      DefaultAPIVersion,
		allowedOrigins:  []string{"*"},
		bodyLimit:       DefaultBodyLimit,
		readTimeout:     15 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: DefaultShutdownTimeout,
		router:          mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{
			"X-Request-ID",
			"RateLimit-Policy", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset",
		},
	})

	var h http.Handler = s.router
	h = s.limitBody(h)
	h = s.rateLimit(h)
	h = c.Handler(h)
	h = securityHeaders(h)
	h = s.recoverPanics(h)
	h = s.observe(h)
	s.handler = h

	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	v := s.router.PathPrefix(s.basePath()).Subrouter()
	v.Use(s.authenticate)
	v.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v.HandleFunc("/ask-jiji", s.handleAsk).Methods(http.MethodPost)
	v.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.notFound)
}

func (s *Server) basePath() string {
	return "/api/" + s.apiVersion
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening",
			zap.String("addr", addr),
			zap.String("base_path", s.basePath()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
