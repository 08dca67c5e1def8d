package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const denylistPrefix = "blacklist:"

// TokenDenylist 记录已登出但尚未过期的 token。
type TokenDenylist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

// redisTokenDenylist 使用 Redis 的过期 key 实现黑名单。
type redisTokenDenylist struct {
	rdb *redis.Client
}

// NewTokenDenylist 创建一个新的 TokenDenylist 实例。
func NewTokenDenylist(rdb *redis.Client) TokenDenylist {
	return &redisTokenDenylist{rdb: rdb}
}

// Add 把 token 加入黑名单，ttl 为其剩余有效期。已过期的 token 不需要记录。
func (r *redisTokenDenylist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, denylistPrefix+token, "true", ttl).Err()
}

// Contains 判断 token 是否在黑名单中。
func (r *redisTokenDenylist) Contains(ctx context.Context, token string) (bool, error) {
	err := r.rdb.Get(ctx, denylistPrefix+token).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
