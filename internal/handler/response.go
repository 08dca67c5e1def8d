// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-go/internal/service"
	"docqa-go/pkg/log"
)

// statusFor 将业务错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrUnsupportedMediaType):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrEmbedding),
		errors.Is(err, service.ErrGeneration),
		errors.Is(err, service.ErrVectorStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError 记录错误并以 {"code","message"} 的形式返回。
func respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
	} else {
		log.Warnf("%s: %v", op, err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"code":    status,
		"message": err.Error(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    http.StatusBadRequest,
		"message": message,
	})
}
