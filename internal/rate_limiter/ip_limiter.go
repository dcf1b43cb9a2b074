// Package ratelimiter throttles HTTP requests per client IP.
package ratelimiter

import (
	"context"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CleanupOpts controls how long an idle IP keeps its bucket.
type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type ipAddr string

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[ipAddr]*visitor
	limit    rate.Limit
	burst    int
	opts     CleanupOpts
	stop     context.CancelFunc
}

// NewIPRateLimiter allows requests per window for each IP and starts the
// cleanup goroutine. Call Stop when done.
func NewIPRateLimiter(requests int, window time.Duration, opts CleanupOpts) *IPRateLimiter {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.TTL <= 0 {
		opts.TTL = 3 * window
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := &IPRateLimiter{
		visitors: make(map[ipAddr]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		opts:     opts,
		stop:     cancel,
	}

	go rl.cleanup(ctx)

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stop()
}

func (rl *IPRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			maps.DeleteFunc(rl.visitors, func(_ ipAddr, v *visitor) bool {
				return now.Sub(v.lastSeen) > rl.opts.TTL
			})
			rl.mu.Unlock()
		}
	}
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// ignored here; behind a trusted proxy the router rewrites RemoteAddr first.
func ClientIP(r *http.Request) ipAddr {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ipAddr(r.RemoteAddr)
	}

	return ipAddr(host)
}

// Allow spends one token from ip's bucket.
func (rl *IPRateLimiter) Allow(ip ipAddr) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}

	v.lastSeen = time.Now()
	return v.limiter.Allow()
}

// Middleware rejects requests from an IP that ran out of budget.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(max(time.Second, time.Duration(float64(time.Second)/float64(rl.limit))).Seconds()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if !rl.Allow(ip) {
			slog.WarnContext(r.Context(), "rate limit exceeded",
				"ip", ip,
				"path", r.URL.Path,
				"method", r.Method)

			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "Too many requests. Try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
