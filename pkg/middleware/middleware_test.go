package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newTestRouter(RequestIDMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "custom-request-id")
	r.ServeHTTP(w, req)
	assert.Equal(t, "custom-request-id", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "custom-request-id", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	r.ServeHTTP(w, req)
	_, err = uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestGetRequestID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetRequestID(c))
}

func TestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newTestRouter(RequestIDMiddleware(), LoggerMiddleware(zap.New(core)))
	r.GET("/api/settings", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.POST("/api/reconnect", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	r.POST("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, rq := range []struct{ method, path string }{
		{http.MethodGet, "/api/settings"},
		{http.MethodGet, "/api/missing"},
		{http.MethodPost, "/api/reconnect"},
		{http.MethodPost, "/metrics"},
		{http.MethodGet, "/boom"},
	} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(rq.method, rq.path, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "/api/missing", entries[0].ContextMap()["path"])
	assert.Equal(t, "/api/reconnect", entries[1].ContextMap()["path"])
	assert.NotEmpty(t, entries[1].ContextMap()["requestId"])
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := newTestRouter(RecoveryMiddleware(zap.New(core)))
	r.GET("/panic", func(c *gin.Context) { panic("handler exploded") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":500`)
	assert.Contains(t, w.Body.String(), "internal error: handler exploded")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "/panic", logs.All()[0].ContextMap()["route"])
}

func TestTokenMiddleware(t *testing.T) {
	r := newTestRouter(TokenMiddleware(TokenConfig{Token: "s3cret", SkipPaths: []string{"/metrics"}}))
	r.GET("/api/diagnostics", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing", "/api/diagnostics", "", http.StatusUnauthorized},
		{"wrong", "/api/diagnostics", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/api/diagnostics", "Bearer s3cret", http.StatusOK},
		{"bare", "/api/diagnostics", "s3cret", http.StatusOK},
		{"query", "/api/diagnostics?token=s3cret", "", http.StatusOK},
		{"skipped", "/metrics", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestTokenMiddleware_Disabled(t *testing.T) {
	r := newTestRouter(TokenMiddleware(TokenConfig{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCorsMiddleware(t *testing.T) {
	r := newTestRouter(CorsMiddleware([]string{"https://console.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	check := func(origin string) string {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", origin)
		r.ServeHTTP(w, req)
		return w.Header().Get("Access-Control-Allow-Origin")
	}
	assert.Equal(t, "http://localhost:5173", check("http://localhost:5173"))
	assert.Equal(t, "https://console.example.com", check("https://console.example.com"))
	assert.Empty(t, check("https://evil.example.com"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCompressionMiddleware(t *testing.T) {
	r := newTestRouter(CompressionMiddleware(nil))
	body := strings.Repeat("lingchat ", 500)
	r.GET("/api/diagnostics", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, body) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())
}

func TestTimeoutMiddleware(t *testing.T) {
	r := newTestRouter(TimeoutMiddleware(50 * time.Millisecond))
	r.GET("/x", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		if !ok || time.Until(deadline) > 50*time.Millisecond {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl, err := NewRateLimiter(RateLimiterConfig{Rate: "2-M", SkipPaths: []string{"/metrics"}}, nil, nil)
	require.NoError(t, err)

	r := newTestRouter(rl.Middleware())
	r.POST("/api/emit", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(method, path, addr string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/emit", "10.0.0.1:1000").Code)
	w := do(http.MethodPost, "/api/emit", "10.0.0.1:1000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost, "/api/emit", "10.0.0.1:1000").Code)

	// other clients and skipped paths are unaffected
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/emit", "10.0.0.2:1000").Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/metrics", "10.0.0.1:1000").Code)
	}
}

func TestNewRateLimiter_InvalidRate(t *testing.T) {
	_, err := NewRateLimiter(RateLimiterConfig{Rate: "lots"}, nil, nil)
	assert.Error(t, err)
}
