package bootstrap

import (
	"github.com/code-100-precent/LingChat/internal/handlers"
	"github.com/code-100-precent/LingChat/pkg/config"
	"github.com/code-100-precent/LingChat/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewEngine builds the control API router with the middleware chain
func NewEngine(cfg *config.Config, h *handlers.Handlers, log *zap.Logger) (*gin.Engine, error) {
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	// Disable automatic redirects, clients call exact paths
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RecoveryMiddleware(log))
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CorsMiddleware(cfg.AllowedOrigins))

	if cfg.ControlRate != "" {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:      cfg.ControlRate,
			SkipPaths: []string{cfg.MonitorPrefix},
		}, nil, log)
		if err != nil {
			return nil, err
		}
		r.Use(limiter.Middleware())
	}
	r.Use(middleware.TokenMiddleware(middleware.TokenConfig{
		Token:     cfg.ControlToken,
		SkipPaths: []string{cfg.MonitorPrefix},
	}))
	r.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.CompressionMiddleware(&middleware.CompressionConfig{
		ExcludePaths: []string{cfg.MonitorPrefix},
	}))

	h.Register(r)
	return r, nil
}
