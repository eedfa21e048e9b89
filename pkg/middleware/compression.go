package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// CompressionConfig represents compression middleware configuration
type CompressionConfig struct {
	// Compression level (1-9, default: 6)
	Level int
	// Exclude paths from compression
	ExcludePaths []string
}

// DefaultCompressionConfig returns default compression configuration
func DefaultCompressionConfig() *CompressionConfig {
	return &CompressionConfig{
		Level: gzip.DefaultCompression,
		// promhttp negotiates its own encoding
		ExcludePaths: []string{"/metrics"},
	}
}

// CompressionMiddleware gzips responses for clients that accept it
func CompressionMiddleware(config *CompressionConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultCompressionConfig()
	}
	if config.Level < gzip.BestSpeed || config.Level > gzip.BestCompression {
		config.Level = gzip.DefaultCompression
	}
	return gzip.Gzip(config.Level, gzip.WithExcludedPaths(config.ExcludePaths))
}
