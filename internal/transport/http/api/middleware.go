package apihttp

import (
	"strings"
	"time"

	"fxanalyst/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID 同时用于读取调用方传入的 ID 和回写响应头。
	HeaderRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	maxRequestIDLen = 64
)

// requestID 为每个请求分配 ID；调用方提供的合法值会被沿用。
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// requestLogger 记录每个请求的状态码与耗时。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s req=%s dur=%s",
			method, path, c.Writer.Status(), client, requestIDFrom(c), time.Since(start))
	}
}
