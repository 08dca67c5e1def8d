package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type localStore struct {
	dir string
}

// NewLocal 使用本地目录保存上传文件，目录不存在时创建。
func NewLocal(dir string) (ObjectStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Save(ctx context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// 只取最后一段，防止名字中带路径穿越
	path := filepath.Join(s.dir, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
