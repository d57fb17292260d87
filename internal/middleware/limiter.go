package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"imgopt/internal/telemetry"
)

// IPRateLimiter keeps a token bucket per client address. Transform
// requests are expensive to miss on, so the limiter sits in front of the
// whole cache route.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[netip.Addr]*client

	rate         rate.Limit
	burst        int
	trustedProxy bool
	metrics      *telemetry.Metrics
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(ctx context.Context, rps, burst int, trustedProxy bool, metrics *telemetry.Metrics) *IPRateLimiter {
	l := &IPRateLimiter{
		clients:      make(map[netip.Addr]*client),
		rate:         rate.Limit(rps),
		burst:        burst,
		trustedProxy: trustedProxy,
		metrics:      metrics,
	}

	go l.backgroundCleanup(ctx)
	return l
}

func (l *IPRateLimiter) backgroundCleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup(3 * time.Minute)
		}
	}
}

func (l *IPRateLimiter) cleanup(inactiveLimit time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for addr, c := range l.clients {
		if time.Since(c.lastSeen) > inactiveLimit {
			delete(l.clients, addr)
		}
	}
}

func (l *IPRateLimiter) limiterFor(addr netip.Addr) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[addr]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[addr] = c
	}
	c.lastSeen = time.Now().UTC()
	return c.limiter
}

func (l *IPRateLimiter) Middleware(logger *slog.Logger) Middleware {
	clientAddr := clientAddrResolver(l.trustedProxy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := clientAddr(r)
			if !ok {
				http.Error(w, "invalid ip address", http.StatusBadRequest)
				return
			}

			limiter := l.limiterFor(addr)
			if !limiter.Allow() {
				// peek at when the next token frees up, without consuming it
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				l.metrics.RateLimitHitsTotal.Add(r.Context(), 1)
				logger.Warn("rate limit exceeded", "ip", addr.String(), "path", r.URL.Path)

				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(delay.Seconds()))))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
				w.Header().Set("X-RateLimit-Remaining", "0")

				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			next.ServeHTTP(w, r)
		})
	}
}
