package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"go.uber.org/zap"
)

// rateLimiter keeps a token bucket per client IP. A bucket holds max tokens
// and refills completely over one window.
type rateLimiter struct {
	window   time.Duration
	max      int
	interval time.Duration

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// decision is the outcome of one rate limit check.
type decision struct {
	allowed   bool
	remaining int
	reset     time.Duration
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{
		window:   window,
		max:      max,
		interval: window / time.Duration(max),
		clients:  make(map[string]*client),
	}
}

func (l *rateLimiter) allow(key string, now time.Time) decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Every(l.interval), l.max)}
		l.clients[key] = c
	}
	c.lastSeen = now

	allowed := c.limiter.AllowN(now, 1)
	tokens := c.limiter.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}

	d := decision{
		allowed:   allowed,
		remaining: int(math.Floor(tokens)),
		reset:     time.Duration((float64(l.max) - tokens) * float64(l.interval)),
	}
	if !allowed {
		d.reset = time.Duration((1 - tokens) * float64(l.interval))
	}
	return d
}

// sweep drops clients idle for a full window. Their buckets are full again,
// so forgetting them changes nothing.
func (l *rateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.window {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

func (l *rateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// rateLimit answers 429 once a client exhausts its bucket and advertises
// the budget in RateLimit-* headers.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.limiter
		d := l.allow(clientIP(r), s.now())

		h := w.Header()
		h.Set("RateLimit-Policy", strconv.Itoa(l.max)+";w="+strconv.Itoa(ceilSeconds(l.window)))
		h.Set("RateLimit-Limit", strconv.Itoa(l.max))
		h.Set("RateLimit-Remaining", strconv.Itoa(d.remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(d.reset)))

		if !d.allowed {
			h.Set("Retry-After", strconv.Itoa(ceilSeconds(d.reset)))
			if s.metrics != nil {
				s.metrics.RateLimited()
			}
			s.logger.Debug("rate limited", zap.String("client", clientIP(r)))
			s.writeJSON(w, http.StatusTooManyRequests, errorEnvelope{Success: false, Error: msgTooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the host part of the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
