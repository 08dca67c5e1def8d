// Package storage 提供了原始上传文件的持久化实现：MinIO 对象存储或本地目录。
package storage

import (
	"context"
	"fmt"
	"io"

	"docqa-go/internal/config"
)

// ObjectStore 保存上传的原始文件。
type ObjectStore interface {
	// Save 将 r 中的 size 字节写入名为 name 的对象，返回可用于定位该对象的地址。
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// New 根据 storage.provider 构造对应实现。
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Provider {
	case "minio":
		return NewMinIO(ctx, cfg.MinIO)
	case "local":
		return NewLocal(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("未知的 storage.provider: %q", cfg.Provider)
	}
}
