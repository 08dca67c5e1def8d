// Package model 定义了与数据库表、文档集合对应的 Go 结构体。
package model

import "time"

// 入库记录的状态。
const (
	UploadStatusProcessing = 0
	UploadStatusCompleted  = 1
	UploadStatusFailed     = 2
)

// DocumentUpload 定义了 document_uploads 表的 ORM 模型。
// 它记录了每次 PDF 上传的存储位置、目标集合和入库结果。
type DocumentUpload struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginalFilename string     `gorm:"type:varchar(255);not null" json:"original_filename"`
	StoredFilename   string     `gorm:"type:varchar(255);not null" json:"stored_filename"`
	StorageLocation  string     `gorm:"type:varchar(512)" json:"storage_location"`
	CollectionName   string     `gorm:"type:varchar(255);not null;index" json:"collection_name"`
	TotalChunks      int        `gorm:"not null;default:0" json:"total_chunks"`
	Status           int        `gorm:"type:tinyint;not null;default:0" json:"status"` // 0: processing, 1: completed, 2: failed
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt      *time.Time `gorm:"default:null" json:"completed_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentUpload) TableName() string {
	return "document_uploads"
}

// StatusText 返回状态的可读形式，用于事件与日志。
func (d *DocumentUpload) StatusText() string {
	switch d.Status {
	case UploadStatusCompleted:
		return "completed"
	case UploadStatusFailed:
		return "failed"
	default:
		return "processing"
	}
}
