package handlers

import (
	"net"
	"net/http"
	"sync"

	"github.com/juju/ratelimit"
)

const (
	authRatePerSecond = 1
	authBurst         = 10
)

// ipLimiter keeps a token bucket per client IP for the auth endpoints.
type ipLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   int64
	buckets map[string]*ratelimit.Bucket
}

func newIPLimiter(rate float64, burst int64) *ipLimiter {
	return &ipLimiter{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*ratelimit.Bucket),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = ratelimit.NewBucketWithRate(l.rate, l.burst)
		l.buckets[ip] = bucket
	}
	l.mu.Unlock()
	return bucket.TakeAvailable(1) > 0
}

// rateLimited guards an endpoint with the per-IP bucket.
func (h *Handler) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !h.limiter.allow(ip) {
			respondError(w, http.StatusTooManyRequests, "Too many requests. Try again shortly.")
			return
		}
		next(w, r)
	}
}
