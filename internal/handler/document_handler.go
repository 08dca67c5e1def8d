package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docqa-go/internal/service"
	"docqa-go/pkg/log"
)

// DocumentHandler 负责 PDF 上传与入库记录查询。
type DocumentHandler struct {
	ingestService service.IngestService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(ingestService service.IngestService) *DocumentHandler {
	return &DocumentHandler{ingestService: ingestService}
}

// Upload 接收 multipart 表单中的 file 字段并完成入库。
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("Upload: missing file field, error: %v", err)
		badRequest(c, "Missing 'file' field")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: failed to open multipart file", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Could not read the uploaded file",
		})
		return
	}
	defer file.Close()

	log.Infof("[DocumentHandler] 收到上传请求: %s (%d bytes)", fileHeader.Filename, fileHeader.Size)
	summary, err := h.ingestService.Upload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		respondError(c, "Upload", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListDocuments 按时间倒序返回入库记录。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultUploadListLimit)))
	if err != nil || limit <= 0 {
		badRequest(c, "limit must be a positive integer")
		return
	}

	uploads, err := h.ingestService.ListUploads(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "ListDocuments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    uploads,
	})
}
