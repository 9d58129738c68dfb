package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/config"
	"golang.org/x/time/rate"
)

const (
	defaultAuthRPS   = 5
	defaultAuthBurst = 10

	bucketSweepInterval = 3 * time.Minute
	bucketIdleTTL       = 5 * time.Minute
)

// bucket is one client address's token bucket.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles the unauthenticated auth endpoints per client IP,
// so one address cannot burn through signup/login attempts for everyone.
// Buckets appear on first sight of an address and are swept once idle.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
}

// NewRateLimiter builds a limiter from the server config section. Zero or
// missing values fall back to the built-in defaults.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultAuthRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultAuthBurst
	}

	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) bucketFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// sweep drops buckets whose address has been quiet past the idle TTL.
func (rl *RateLimiter) sweep() {
	for {
		time.Sleep(bucketSweepInterval)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.lastSeen) > bucketIdleTTL {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware enforces the per-IP limit and answers 429 once it is exhausted.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.bucketFor(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many requests, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
