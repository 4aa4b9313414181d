package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/learnwithjiji/jiji/internal/auth"
)

const requestIDHeader = "X-Request-ID"

// routeUnmatched labels requests that hit no route.
const routeUnmatched = "unmatched"

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// observe assigns a request id, records metrics and, outside production,
// logs every request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := s.now().Sub(start)

		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, s.routeTemplate(r), rec.status, elapsed)
		}
		if !s.production {
			s.logger.Info("request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("elapsed", elapsed),
			)
		}
	})
}

// routeTemplate returns the path template of the route r matches, keeping
// metric labels bounded.
func (s *Server) routeTemplate(r *http.Request) string {
	var match mux.RouteMatch
	if !s.router.Match(r, &match) || match.Route == nil {
		return routeUnmatched
	}
	tpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return routeUnmatched
	}
	return tpl
}

// recoverPanics turns a handler panic into a 500 envelope.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.writeError(w, r, &AppError{
				Status:  http.StatusInternalServerError,
				Message: fmt.Sprint(v),
				stack:   debug.Stack(),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeaders sets the usual hardening headers of a JSON API.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", "default-src 'self';base-uri 'self';font-src 'self' https: data:;"+
			"form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';"+
			"script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';upgrade-insecure-requests")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Origin-Agent-Cluster", "?1")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Download-Options", "noopen")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		h.Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// authenticate attaches the identity of a valid bearer token to the request
// context. Requests without one continue anonymously.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, ok := s.resolver.Resolve(r.Context(), token)
		if !ok {
			s.logger.Debug("bearer token rejected", zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// limitBody rejects bodies above the configured size.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > s.bodyLimit {
			s.writeError(w, r, NewAppError(http.StatusRequestEntityTooLarge, msgBodyTooLarge))
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit)
		}
		next.ServeHTTP(w, r)
	})
}
