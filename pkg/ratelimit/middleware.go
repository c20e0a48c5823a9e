package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"almaconnector/pkg/metrics"
)

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerClient keeps one token bucket per client IP.
type PerClient struct {
	cfg      Config
	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func NewPerClient(cfg Config) *PerClient {
	return &PerClient{
		cfg:      cfg,
		limiters: make(map[string]*clientLimiter),
	}
}

func (p *PerClient) allow(key string, now time.Time) (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[key]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)}
		p.limiters[key] = l
	}
	l.lastSeen = now

	allowed := l.limiter.AllowN(now, 1)
	remaining := int(l.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

// Cleanup drops buckets of clients not seen for MaxAge until ctx is done.
func (p *PerClient) Cleanup(ctx context.Context) {
	interval := p.cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.evict(now)
		}
	}
}

func (p *PerClient) evict(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, l := range p.limiters {
		if now.Sub(l.lastSeen) > p.cfg.MaxAge {
			delete(p.limiters, key)
		}
	}
}

func (p *PerClient) Middleware() gin.HandlerFunc {
	limit := strconv.Itoa(int(p.cfg.RPS))

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		allowed, remaining := p.allow(clientIP, time.Now())
		c.Header("X-RateLimit-Limit", limit)

		if !allowed {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Next()
	}
}

// NewOutbound returns a limiter for calls to a remote API, or nil when rps
// is not positive. Callers treat a nil limiter as unlimited.
func NewOutbound(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
