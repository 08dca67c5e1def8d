// Package vectorstore 定义向量库的统一接口，并提供 Qdrant 与 Elasticsearch 两种实现。
package vectorstore

import (
	"context"
	"errors"
)

// ErrCollectionNotFound 表示要检索的集合不存在。
var ErrCollectionNotFound = errors.New("collection not found")

// Point 是写入向量库的一条记录，payload 只保存 chunk 原文。
type Point struct {
	ID     uint64
	Vector []float32
	Text   string
}

// Hit 是一次相似度检索的结果，按分数从高到低排列。
type Hit struct {
	ID    uint64
	Score float32
	Text  string
}

// Store 抽象了入库与检索所需的向量库操作。
type Store interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	// Recreate 删除同名集合（若存在）并以给定维度、余弦距离重新创建。
	Recreate(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, name string, points []Point) error
	Search(ctx context.Context, name string, vector []float32, limit int) ([]Hit, error)
	Close() error
}
