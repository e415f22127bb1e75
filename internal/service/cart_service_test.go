package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/internal/testutil"
)

func newCartService(t *testing.T) (CartService, *testutil.Fixtures, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewCartService(db, repository.NewCartRepository(db), repository.NewProductRepository(db))
	return svc, testutil.NewFixtures(t, db), db
}

func TestCartService_AddAccumulates(t *testing.T) {
	svc, fx, _ := newCartService(t)
	ctx := context.Background()
	u := fx.User("alice")
	a := fx.Product("A", "10.00", 5)

	item, err := svc.Add(ctx, u.ID, a.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	item, err = svc.Add(ctx, u.ID, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)
	assert.EqualValues(t, 1, fx.CartSize(u.ID))

	_, err = svc.Add(ctx, u.ID, a.ID, 3)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)

	view, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, "30.00", view.Total.StringFixed(2))
}

func TestCartService_AddRejects(t *testing.T) {
	svc, fx, db := newCartService(t)
	ctx := context.Background()
	u := fx.User("bob")

	_, err := svc.Add(ctx, u.ID, 9999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	a := fx.Product("A", "10.00", 5)
	_, err = svc.Add(ctx, u.ID, a.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Add(ctx, u.ID, a.ID, -2)
	assert.ErrorIs(t, err, ErrValidation)

	off := fx.Product("Off", "1.00", 5)
	require.NoError(t, repository.NewProductRepository(db).Update(ctx, off.ID, map[string]interface{}{"is_active": false}))
	_, err = svc.Add(ctx, u.ID, off.ID, 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)
	assert.EqualValues(t, 0, fx.CartSize(u.ID))
}

func TestCartService_UpdateIsIdempotent(t *testing.T) {
	svc, fx, _ := newCartService(t)
	ctx := context.Background()
	u := fx.User("carol")
	a := fx.Product("A", "10.00", 5)
	fx.CartItem(u.ID, a.ID, 1)

	first, err := svc.Update(ctx, u.ID, a.ID, 3)
	require.NoError(t, err)
	second, err := svc.Update(ctx, u.ID, a.ID, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, first.Quantity)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Quantity, second.Quantity)

	view, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
}

func TestCartService_UpdateZeroRemoves(t *testing.T) {
	svc, fx, _ := newCartService(t)
	ctx := context.Background()
	u := fx.User("dave")
	a := fx.Product("A", "10.00", 5)
	fx.CartItem(u.ID, a.ID, 2)

	item, err := svc.Update(ctx, u.ID, a.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.EqualValues(t, 0, fx.CartSize(u.ID))

	// 再次设置为 0 仍成功
	_, err = svc.Update(ctx, u.ID, a.ID, 0)
	assert.NoError(t, err)
}

func TestCartService_UpdateRejects(t *testing.T) {
	svc, fx, _ := newCartService(t)
	ctx := context.Background()
	u := fx.User("erin")
	a := fx.Product("A", "10.00", 2)

	_, err := svc.Update(ctx, u.ID, a.ID, 1)
	assert.ErrorIs(t, err, ErrCartItemNotFound)

	fx.CartItem(u.ID, a.ID, 1)
	_, err = svc.Update(ctx, u.ID, a.ID, -1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Update(ctx, u.ID, a.ID, 3)
	assert.ErrorIs(t, err, ErrOutOfStock)

	view, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Count)
}

func TestCartService_RemoveIsIdempotent(t *testing.T) {
	svc, fx, _ := newCartService(t)
	ctx := context.Background()
	u := fx.User("frank")
	a := fx.Product("A", "10.00", 5)
	b := fx.Product("B", "5.00", 5)
	fx.CartItem(u.ID, a.ID, 1)
	fx.CartItem(u.ID, b.ID, 1)

	require.NoError(t, svc.Remove(ctx, u.ID, a.ID))
	require.NoError(t, svc.Remove(ctx, u.ID, a.ID))

	view, err := svc.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, b.ID, view.Items[0].ProductID)
	assert.Equal(t, "B", view.Items[0].Product.Name)
}

func TestCartService_ListIsolatesUsers(t *testing.T) {
	svc, fx, _ := newCartService(t)
	ctx := context.Background()
	u1, u2 := fx.User("gina"), fx.User("hank")
	a := fx.Product("A", "2.50", 5)
	fx.CartItem(u1.ID, a.ID, 2)

	view, err := svc.List(ctx, u2.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())

	view, err = svc.List(ctx, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, "5.00", view.Total.StringFixed(2))
	assert.IsType(t, &model.CartItem{}, view.Items[0])
}
