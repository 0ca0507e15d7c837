package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/corsfileserver/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10_000
	clientIdleTTL     = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter applies a global bucket and one bucket per client address.
type Limiter struct {
	global  *rate.Limiter
	clients map[string]*clientLimiter
	mu      sync.Mutex

	rps   rate.Limit
	burst int
	now   func() time.Time
}

func New(rps float64, burst int) *Limiter {
	return &Limiter{
		global:  rate.NewLimiter(rate.Limit(rps), burst),
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Middleware rejects requests over the limit with 429. Wrap it inside the
// CORS middleware so rejections still carry the CORS headers.
func (l *Limiter) Middleware(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientAddr(r)) {
			m.RateLimitDropped.Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) allow(addr string) bool {
	now := l.now()
	if !l.global.AllowN(now, 1) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.clients[addr]
	if !ok {
		item = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[addr] = item
	}

	item.lastSeen = now
	if len(l.clients) > maxTrackedClients {
		l.cleanupLocked(now.Add(-clientIdleTTL))
	}

	return item.limiter.AllowN(now, 1)
}

func (l *Limiter) cleanupLocked(threshold time.Time) {
	for addr, entry := range l.clients {
		if entry.lastSeen.Before(threshold) {
			delete(l.clients, addr)
		}
	}
}

// clientAddr keys on the connection peer. Forwarding headers are ignored:
// the server is reached directly, so they would only let a client pick its
// own bucket.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
