package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenConfig guards the control API with a shared bearer token
type TokenConfig struct {
	// Empty disables the check
	Token string
	// Token header name (default: "Authorization")
	TokenHeader string
	// Token prefix (default: "Bearer ")
	TokenPrefix string
	// Paths served without a token
	SkipPaths []string
}

// TokenMiddleware rejects requests without the configured token
func TokenMiddleware(config TokenConfig) gin.HandlerFunc {
	if config.TokenHeader == "" {
		config.TokenHeader = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}

	return func(c *gin.Context) {
		if config.Token == "" {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		for _, skipPath := range config.SkipPaths {
			if strings.HasPrefix(path, skipPath) {
				c.Next()
				return
			}
		}

		token := extractToken(c, config)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(config.Token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context, config TokenConfig) string {
	if h := c.GetHeader(config.TokenHeader); h != "" {
		return strings.TrimPrefix(h, config.TokenPrefix)
	}
	return c.Query("token")
}
