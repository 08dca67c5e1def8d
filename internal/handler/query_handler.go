package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-go/internal/service"
	"docqa-go/pkg/log"
)

// QueryHandler 处理基于文档的问答请求。
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// QueryRequest 定义了问答 API 的请求体结构。字段校验交给 service 层，以返回具体的缺失字段。
type QueryRequest struct {
	Question       string `json:"question"`
	CollectionName string `json:"collection_name"`
	TopK           int    `json:"top_k"`
}

// Ask 检索相关分块并生成回答。
func (h *QueryHandler) Ask(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Ask: Invalid request payload, error: %v", err)
		badRequest(c, "Invalid request payload")
		return
	}

	log.Infof("[QueryHandler] 收到问答请求, collection: %s, topK: %d", req.CollectionName, req.TopK)
	result, err := h.queryService.Ask(c.Request.Context(), req.Question, req.CollectionName, req.TopK)
	if err != nil {
		respondError(c, "Ask", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Root 是存活检查接口。
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "The webserver is running!!!"})
}
