package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the envelope of every control API response
type Body struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Result writes the envelope with an explicit HTTP status and code
func Result(c *gin.Context, status, code int, msg string, data any) {
	c.JSON(status, Body{Code: code, Msg: msg, Data: data})
}

// Success answers 200 with code 200
func Success(c *gin.Context, msg string, data any) {
	Result(c, http.StatusOK, http.StatusOK, msg, data)
}

// Fail answers 200 with code 500, for failures the caller may retry
func Fail(c *gin.Context, msg string, data any) {
	Result(c, http.StatusOK, http.StatusInternalServerError, msg, data)
}

// BadRequest answers 400 with the reason in msg
func BadRequest(c *gin.Context, err error) {
	Result(c, http.StatusBadRequest, http.StatusBadRequest, err.Error(), nil)
}

func AbortWithStatus(c *gin.Context, status int) {
	c.AbortWithStatus(status)
}

func AbortWithStatusJSON(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
