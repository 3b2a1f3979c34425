package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/eldtechnologies/roomdrop/internal/metrics"
)

// idleLimiterTTL is how long an unused per-client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// LocalRateLimiter enforces the same limits as RateLimiter with token
// buckets held in process memory. It serves single-node deployments that
// run without Redis.
type LocalRateLimiter struct {
	limits    []RateLimit
	logger    zerolog.Logger
	whitelist whitelist
	now       func() time.Time

	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
}

// NewLocalRateLimiter creates an in-process rate limiter.
func NewLocalRateLimiter(logger zerolog.Logger, cfg RateLimiterConfig) *LocalRateLimiter {
	limits := cfg.Limits
	if limits == nil {
		limits = DefaultLimits
	}
	return &LocalRateLimiter{
		limits:    limits,
		logger:    logger,
		whitelist: newWhitelist(cfg.Whitelist, logger),
		now:       time.Now,
		entries:   make(map[string]*localEntry),
	}
}

// Allow reports whether one more request for key is within limit.
func (l *LocalRateLimiter) Allow(key string, limit RateLimit) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > idleLimiterTTL {
		for k, e := range l.entries {
			// An idle bucket older than its window is full again.
			if now.Sub(e.lastSeen) > max(idleLimiterTTL, e.window) {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		every := limit.Window / time.Duration(limit.Requests)
		e = &localEntry{limiter: rate.NewLimiter(rate.Every(every), limit.Requests), window: limit.Window}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Middleware returns the rate limiting middleware.
func (l *LocalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := RealIP(r)
		if l.whitelist.contains(ip) {
			next.ServeHTTP(w, r)
			return
		}

		limit := findLimit(l.limits, r)
		if limit == nil {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))

		if !l.Allow(limit.Pattern+":"+ip, *limit) {
			metrics.RateLimitHits.WithLabelValues(limit.Pattern).Inc()
			l.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")

			rejectRateLimited(w, limit.Window/time.Duration(limit.Requests))
			return
		}

		next.ServeHTTP(w, r)
	})
}
