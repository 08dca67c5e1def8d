package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"docqa-go/internal/model"
)

// UploadRepository 接口定义了入库记录的持久化操作。
type UploadRepository interface {
	Create(ctx context.Context, record *model.DocumentUpload) error
	MarkCompleted(ctx context.Context, id uint, totalChunks int) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	ListRecent(ctx context.Context, limit int) ([]model.DocumentUpload, error)
}

// uploadRepository 是 UploadRepository 接口的 GORM 实现。
type uploadRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db, now: time.Now}
}

// AutoMigrate 创建或更新 document_uploads 表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.DocumentUpload{})
}

// Create 在数据库中创建一条处理中的入库记录。
func (r *uploadRepository) Create(ctx context.Context, record *model.DocumentUpload) error {
	record.Status = model.UploadStatusProcessing
	return r.db.WithContext(ctx).Create(record).Error
}

// MarkCompleted 记录入库成功及生成的分块数。
func (r *uploadRepository) MarkCompleted(ctx context.Context, id uint, totalChunks int) error {
	return r.db.WithContext(ctx).Model(&model.DocumentUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       model.UploadStatusCompleted,
		"total_chunks": totalChunks,
		"completed_at": r.now(),
	}).Error
}

// MarkFailed 记录入库失败的原因。
func (r *uploadRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&model.DocumentUpload{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.UploadStatusFailed,
		"error_message": reason,
		"completed_at":  r.now(),
	}).Error
}

// ListRecent 按创建时间倒序返回最近的入库记录。
func (r *uploadRepository) ListRecent(ctx context.Context, limit int) ([]model.DocumentUpload, error) {
	var records []model.DocumentUpload
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}
