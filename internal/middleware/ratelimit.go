package middleware

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type IPRateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	log      *zap.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix seconds
}

// NewIPRateLimiter allows limit requests per window per client IP, with the
// whole allowance available as an initial burst.
func NewIPRateLimiter(limit int, window time.Duration, logger *zap.Logger) *IPRateLimiter {
	if limit < 1 {
		limit = 1
	}
	l := &IPRateLimiter{
		rps:   rate.Limit(float64(limit) / window.Seconds()),
		burst: limit,
		log:   logger,
	}
	return l
}

// StartCleanup evicts idle visitors every minute until stop is closed.
func (l *IPRateLimiter) StartCleanup(stop <-chan struct{}) {
	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				cutoff := time.Now().Add(-30 * time.Minute).Unix()
				l.visitors.Range(func(k, v interface{}) bool {
					if v.(*visitor).lastSeen.Load() < cutoff {
						l.visitors.Delete(k)
					}
					return true
				})
			}
		}
	}()
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	v, _ := l.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(l.rps, l.burst)})
	vi := v.(*visitor)
	vi.lastSeen.Store(time.Now().Unix())
	return vi.limiter
}

func (l *IPRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := getIP(c)
		if !l.getLimiter(ip).Allow() {
			l.log.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests from this IP, please try again later.",
			})
		}
		return c.Next()
	}
}

func getIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		ip = "unknown"
	}
	host, _, err := net.SplitHostPort(ip)
	if err == nil {
		return host
	}
	return ip
}
