// Package ratelimit implements a per-client token bucket for the operator
// routes.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/livescript/livescript/internal/httputil"
	"github.com/livescript/livescript/internal/metrics"
)

const (
	cleanupInterval = 5 * time.Minute
	idleTimeout     = 10 * time.Minute
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

type Limiter struct {
	name  string
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

// NewLimiter returns a limiter refilling requestsPerSecond tokens up to
// burst. name labels rejections in the rate_limited_total metric.
func NewLimiter(name string, requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		name:    name,
		rate:    requestsPerSecond,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Close stops the idle bucket sweeper.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate)
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// retryAfter is the number of whole seconds until one token is available
// again.
func (l *Limiter) retryAfter() int {
	if l.rate <= 0 {
		return 60
	}
	return int(math.Ceil(1 / l.rate))
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep(time.Now())
		}
	}
}

func (l *Limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTimeout {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientKey(r)) {
			metrics.RateLimited.WithLabelValues(l.name).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by the first X-Forwarded-For hop when a
// proxy sets one, otherwise by the remote host without its port.
func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
