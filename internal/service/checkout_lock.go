package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/pkg/logger"
)

// CheckoutLocker 保证同一用户同一时刻只有一个结算在执行
type CheckoutLocker interface {
	// Acquire 获取锁；已被占用时返回 ErrCheckoutInProgress
	Acquire(ctx context.Context, userID uint) (release func(), err error)
}

// LocalCheckoutLocker 进程内实现，单实例部署或未启用 Redis 时使用
type LocalCheckoutLocker struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

func NewLocalCheckoutLocker() *LocalCheckoutLocker {
	return &LocalCheckoutLocker{held: make(map[uint]struct{})}
}

func (l *LocalCheckoutLocker) Acquire(_ context.Context, userID uint) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[userID]; busy {
		return nil, ErrCheckoutInProgress
	}
	l.held[userID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, userID)
			l.mu.Unlock()
		})
	}, nil
}

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCheckoutLocker 基于 SET NX PX 的分布式锁，多实例部署使用
type RedisCheckoutLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisCheckoutLocker(client redis.UniversalClient, ttl time.Duration) *RedisCheckoutLocker {
	return &RedisCheckoutLocker{client: client, ttl: ttl, prefix: "storefront:checkout:lock:"}
}

func (l *RedisCheckoutLocker) Acquire(ctx context.Context, userID uint) (func(), error) {
	key := fmt.Sprintf("%s%d", l.prefix, userID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.client, []string{key}, token).Err(); err != nil {
				logger.FromContext(ctx).Warn("release checkout lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
