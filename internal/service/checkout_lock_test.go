package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/storefront/internal/repository"
)

func TestLocalCheckoutLocker(t *testing.T) {
	l := NewLocalCheckoutLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, 1)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.ErrorIs(t, err, ErrConflict)

	other, err := l.Acquire(ctx, 2)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, 1)
	require.NoError(t, err)
	again()
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisCheckoutLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCheckoutLocker(client, ttl), mr
}

func TestRedisCheckoutLocker(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	ctx := context.Background()

	release, err := l.Acquire(ctx, 7)
	require.NoError(t, err)
	assert.True(t, mr.Exists("storefront:checkout:lock:7"))

	_, err = l.Acquire(ctx, 7)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)

	release()
	assert.False(t, mr.Exists("storefront:checkout:lock:7"))

	again, err := l.Acquire(ctx, 7)
	require.NoError(t, err)
	again()
}

func TestRedisCheckoutLocker_ExpiredLockNotStolen(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, 9)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := l.Acquire(ctx, 9)
	require.NoError(t, err)

	// 过期持有者释放时不能删除新持有者的锁
	stale()
	assert.True(t, mr.Exists("storefront:checkout:lock:9"))

	fresh()
	assert.False(t, mr.Exists("storefront:checkout:lock:9"))
}

func TestRedisCheckoutLocker_Unavailable(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	mr.Close()

	_, err := l.Acquire(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestCheckout_WithRedisLocker(t *testing.T) {
	env := newCheckoutEnv(t)
	locker, mr := newRedisLocker(t, time.Minute)
	svc := NewCheckoutService(CheckoutDeps{
		DB:       env.db,
		Carts:    repository.NewCartRepository(env.db),
		Products: repository.NewProductRepository(env.db),
		Orders:   repository.NewOrderRepository(env.db),
		Outbox:   env.outbox,
		Gateway:  env.gateway,
		Locker:   locker,
	})

	u := env.fx.User("uma")
	a := env.fx.Product("A", "10.00", 5)
	env.fx.CartItem(u.ID, a.ID, 1)

	_, err := svc.Checkout(context.Background(), u, CheckoutInput{ShippingAddress: "x"})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}
