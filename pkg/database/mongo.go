// Package database 提供 MongoDB、MySQL 与 Redis 的连接构造函数。
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docqa-go/internal/config"
	"docqa-go/pkg/log"
)

// NewMongo 连接 MongoDB 并 ping 主节点。
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	log.Infof("MongoDB connected successfully, database: %s", cfg.Database)
	return client, nil
}
