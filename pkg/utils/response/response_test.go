package response

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.GET("/t", handlers...)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		handler    gin.HandlerFunc
		wantStatus int
		wantCode   float64
		wantMsg    string
		wantData   bool
	}{
		{
			name:       "success",
			handler:    func(c *gin.Context) { Success(c, "settings saved", gin.H{"enabled": true}) },
			wantStatus: http.StatusOK,
			wantCode:   200,
			wantMsg:    "settings saved",
			wantData:   true,
		},
		{
			name:       "fail keeps transport status",
			handler:    func(c *gin.Context) { Fail(c, "store unavailable", nil) },
			wantStatus: http.StatusOK,
			wantCode:   500,
			wantMsg:    "store unavailable",
		},
		{
			name:       "bad request",
			handler:    func(c *gin.Context) { BadRequest(c, errors.New("quiet hours start: invalid clock")) },
			wantStatus: http.StatusBadRequest,
			wantCode:   400,
			wantMsg:    "quiet hours start: invalid clock",
		},
		{
			name:       "custom",
			handler:    func(c *gin.Context) { Result(c, http.StatusConflict, 409, "not connected", gin.H{"state": "error"}) },
			wantStatus: http.StatusConflict,
			wantCode:   409,
			wantMsg:    "not connected",
			wantData:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, tt.handler)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

			body := decode(t, w)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, tt.wantMsg, body["msg"])
			_, hasData := body["data"]
			assert.Equal(t, tt.wantData, hasData)
		})
	}
}

func TestAbortWithStatus(t *testing.T) {
	reached := false
	w := serve(t,
		func(c *gin.Context) { AbortWithStatus(c, http.StatusUnauthorized) },
		func(c *gin.Context) { reached = true },
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, reached)
	assert.Empty(t, w.Body.String())
}

func TestAbortWithStatusJSON(t *testing.T) {
	reached := false
	w := serve(t,
		func(c *gin.Context) { AbortWithStatusJSON(c, http.StatusTooManyRequests, errors.New("rate limit exceeded")) },
		func(c *gin.Context) { reached = true },
	)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, reached)
	assert.Equal(t, "rate limit exceeded", decode(t, w)["error"])
}
