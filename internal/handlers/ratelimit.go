package handlers

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rolegate/rolegate/internal/views"
	"golang.org/x/time/rate"
)

// LoginLimiter keeps one token bucket per client address.
type LoginLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*client
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows each client perSecond attempts on average with
// bursts of up to burst.
func NewLoginLimiter(perSecond float64, burst int) *LoginLimiter {
	if burst < 1 {
		burst = 1
	}
	return &LoginLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

// Allow reports whether key may make another attempt now.
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Prune forgets clients idle for longer than idle.
func (l *LoginLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// clientKey is the socket peer address. It only reflects forwarding
// headers when the server mounts RealIP (TRUST_PROXY_HEADERS).
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// throttled rejects over-limit submissions by re-rendering page with 429.
func (h *AuthHandler) throttled(page string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.throttle == nil || h.throttle.Allow(clientKey(r)) {
				next.ServeHTTP(w, r)
				return
			}
			h.metrics.AuthOutcome(page, "throttled")
			h.log.WithField("client", clientKey(r)).Warn("too many attempts")
			w.Header().Set("Retry-After", strconv.Itoa(1))
			h.render(w, r, http.StatusTooManyRequests, page, views.Data{
				Error: "Too many attempts, please wait a moment and try again.",
			})
		})
	}
}
