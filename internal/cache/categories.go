// Package cache 基于 Redis 的只读目录数据缓存
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/pkg/logger"
)

const (
	keyPrefix   = "storefront:catalog:"
	listKey     = keyPrefix + "categories"
	categoryKey = keyPrefix + "category:%d"
)

// CategoryCache 分类读缓存；Redis 故障时回落到仓储，写入后删除列表缓存
type CategoryCache struct {
	repository.CategoryRepository
	client redis.UniversalClient
	ttl    time.Duration

	listLoads atomic.Int64
	itemLoads atomic.Int64
}

func NewCategoryCache(next repository.CategoryRepository, client redis.UniversalClient, ttl time.Duration) *CategoryCache {
	return &CategoryCache{CategoryRepository: next, client: client, ttl: ttl}
}

func (c *CategoryCache) Create(ctx context.Context, category *model.Category) error {
	if err := c.CategoryRepository.Create(ctx, category); err != nil {
		return err
	}
	c.invalidate(ctx, listKey)
	return nil
}

func (c *CategoryCache) List(ctx context.Context) ([]*model.Category, error) {
	var out []*model.Category
	if c.get(ctx, listKey, &out) {
		return out, nil
	}

	c.listLoads.Add(1)
	list, err := c.CategoryRepository.List(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, listKey, list)
	return list, nil
}

func (c *CategoryCache) GetByID(ctx context.Context, id uint) (*model.Category, error) {
	key := fmt.Sprintf(categoryKey, id)
	var cat model.Category
	if c.get(ctx, key, &cat) {
		return &cat, nil
	}

	c.itemLoads.Add(1)
	found, err := c.CategoryRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, found)
	return found, nil
}

// Loads 穿透到仓储的读取次数
func (c *CategoryCache) Loads() (list, item int64) {
	return c.listLoads.Load(), c.itemLoads.Load()
}

func (c *CategoryCache) get(ctx context.Context, key string, dst interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Warn("category cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (c *CategoryCache) set(ctx context.Context, key string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.FromContext(ctx).Warn("category cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CategoryCache) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.FromContext(ctx).Warn("category cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
