package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docqa-go/pkg/log"
)

// RequestIDHeader 是请求 ID 使用的请求/响应头。
const RequestIDHeader = "X-Request-ID"

// 超过该长度的 JSON 请求体不记录到日志中。
const maxLoggedBody = 4 << 10

// RequestLogger 是一个 Gin 中间件，用于记录请求日志并分配请求 ID。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		// 只缓存较小的 JSON 请求体；multipart 上传不读取
		var requestBody []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") &&
			c.Request.ContentLength > 0 && c.Request.ContentLength <= maxLoggedBody {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		fields := []interface{}{
			"requestID", requestID,
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		if len(requestBody) > 0 && !strings.HasPrefix(c.Request.URL.Path, "/user/") {
			fields = append(fields, "requestBody", string(requestBody))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		log.Infow("HTTP Request Log", fields...)
	}
}
