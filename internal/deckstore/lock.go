package deckstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ParseLock 是基于 Redis SETNX 的分布式摄取锁。
// 数据库层的状态守卫（BeginParse）保证单实例正确性，
// 该锁在多 worker 实例部署时避免两个实例同时抢到同一 deck。
type ParseLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewParseLock 创建一个 ParseLock。ttl 应大于单次解析的最长耗时，
// 以便 worker 崩溃后锁能自动过期。
func NewParseLock(client *redis.Client, ttl time.Duration) *ParseLock {
	return &ParseLock{client: client, ttl: ttl}
}

func lockKey(deckID string) string {
	return fmt.Sprintf("deck:parse_lock:%s", deckID)
}

// Acquire 尝试获取 deck 的摄取锁，返回是否获取成功。
func (l *ParseLock) Acquire(ctx context.Context, deckID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(deckID), 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取摄取锁失败: %w", err)
	}
	return ok, nil
}

// Release 释放 deck 的摄取锁。锁不存在时不报错。
func (l *ParseLock) Release(ctx context.Context, deckID string) error {
	return l.client.Del(ctx, lockKey(deckID)).Err()
}
