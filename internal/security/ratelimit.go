package security

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter is a per-IP token bucket guard for the public API.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	exempt   []string
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows rps requests per second per IP with the given burst.
// Paths starting with one of exempt are never limited. rps <= 0 disables
// limiting.
func NewLimiter(rps float64, burst int, exempt ...string) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		exempt:   exempt,
		now:      time.Now,
	}
}

func (l *Limiter) Enabled() bool { return l != nil && l.rps > 0 }

// Allow reports whether ip may make one more request now.
func (l *Limiter) Allow(ip string) bool {
	if !l.Enabled() {
		return true
	}
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (l *Limiter) isExempt(path string) bool {
	for _, p := range l.exempt {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Middleware rejects over-limit clients with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Enabled() || l.isExempt(c.Request.URL.Path) {
			c.Next()
			return
		}
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
				"code":  "RATE_LIMIT",
			})
			return
		}
		c.Next()
	}
}

// Sweep forgets visitors idle for longer than idle.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			removed++
		}
	}
	return removed
}

// Run sweeps idle visitors every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(10 * time.Minute)
		}
	}
}
