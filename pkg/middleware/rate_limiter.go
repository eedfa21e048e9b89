package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimiterConfig limits control requests per client IP
type RateLimiterConfig struct {
	// Formatted rate such as "20-S" or "600-M"
	Rate string
	// Paths that are never limited
	SkipPaths []string
}

var rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lingchat",
	Subsystem: "control",
	Name:      "rate_limit_total",
	Help:      "Control API requests by rate limiter result.",
}, []string{"result"})

// RateLimiterCollectors returns the limiter metrics for registration
func RateLimiterCollectors() []prometheus.Collector {
	return []prometheus.Collector{rateLimitedTotal}
}

// RateLimiter wraps a limiter instance as gin middleware
type RateLimiter struct {
	cfg      RateLimiterConfig
	instance *limiter.Limiter
	logger   *zap.Logger
}

// NewRateLimiter parses cfg.Rate and uses store, or an in-memory store when nil
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store, logger *zap.Logger) (*RateLimiter, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = memory.NewStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		cfg:      cfg,
		instance: limiter.New(store, rate),
		logger:   logger,
	}, nil
}

// Middleware answers 429 once a client exceeds the rate
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, p := range rl.cfg.SkipPaths {
			if strings.HasPrefix(path, p) {
				c.Next()
				return
			}
		}

		key := "ip:" + c.ClientIP()
		lctx, err := rl.instance.Get(c.Request.Context(), key)
		if err != nil {
			// fail open, a broken store must not lock out the operator
			rl.logger.Warn("rate limiter unavailable", zap.Error(err))
			rateLimitedTotal.WithLabelValues("error").Inc()
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			rateLimitedTotal.WithLabelValues("deny").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			return
		}
		rateLimitedTotal.WithLabelValues("allow").Inc()
		c.Next()
	}
}
