package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters for a route.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	RequestsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows temporary bursts above the steady rate.
	Burst int
}

// Common rate limit profiles for different endpoint types.
var (
	// StrictLimit for authentication endpoints (brute force prevention).
	StrictLimit = RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	// ModerateLimit for authenticated mutating operations.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 60, Window: time.Minute, Burst: 60}

	// LenientLimit for read-mostly authenticated operations.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 300, Window: time.Minute, Burst: 300}
)

// KeyExtractor extracts a rate-limit bucket key from a request
// (IP address, user id, ...).
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address, honouring X-Forwarded-For
// and X-Real-IP for proxied deployments.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserKeyExtractor keys on the authenticated user id, falling back to IP for
// unauthenticated requests. Must run after AuthnMiddleware to be effective.
func UserKeyExtractor(r *http.Request) string {
	if uid := UserIDFromContext(r.Context()); uid != "" {
		return "user:" + uid
	}
	return "ip:" + IPKeyExtractor(r)
}

// limiterPool holds one token bucket per key and drops idle buckets
// periodically so the map cannot grow without bound.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*pooledLimiter
	cfg      RateLimitConfig
}

type pooledLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	p := &limiterPool{
		limiters: make(map[string]*pooledLimiter),
		cfg:      cfg,
	}
	go p.evictLoop()
	return p
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pl, ok := p.limiters[key]; ok {
		pl.lastSeen = time.Now()
		return pl.limiter
	}

	limit := rate.Every(p.cfg.Window / time.Duration(p.cfg.RequestsPerWindow))
	pl := &pooledLimiter{
		limiter:  rate.NewLimiter(limit, p.cfg.Burst),
		lastSeen: time.Now(),
	}
	p.limiters[key] = pl
	return pl.limiter
}

func (p *limiterPool) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		p.mu.Lock()
		for key, pl := range p.limiters {
			if pl.lastSeen.Before(cutoff) {
				delete(p.limiters, key)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimit returns middleware enforcing cfg per key extracted from the
// request. Rejected requests get 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig, extract KeyExtractor) Middleware {
	pool := newLimiterPool(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.get(extract(r)).Allow() {
				w.Header().Set("Retry-After", "60")
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP enforces cfg per client IP.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, IPKeyExtractor)
}

// RateLimitByUser enforces cfg per authenticated user.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, UserKeyExtractor)
}
