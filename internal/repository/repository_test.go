package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/testutil"
)

func TestProductRepository_DecrementStock(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewProductRepository(db)
	ctx := context.Background()

	p := fx.Product("A", "10.00", 3)

	require.NoError(t, repo.DecrementStock(ctx, p.ID, 2))
	assert.Equal(t, 1, fx.Stock(p.ID))

	err := repo.DecrementStock(ctx, p.ID, 2)
	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Equal(t, 1, fx.Stock(p.ID))

	require.NoError(t, repo.DecrementStock(ctx, p.ID, 1))
	assert.Equal(t, 0, fx.Stock(p.ID))

	require.NoError(t, repo.IncrementStock(ctx, p.ID, 4))
	assert.Equal(t, 4, fx.Stock(p.ID))
}

func TestProductRepository_DecrementInactive(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewProductRepository(db)
	ctx := context.Background()

	p := fx.Product("A", "10.00", 3)
	require.NoError(t, repo.Update(ctx, p.ID, map[string]interface{}{"is_active": false}))

	assert.ErrorIs(t, repo.DecrementStock(ctx, p.ID, 1), ErrStockConflict)
	assert.Equal(t, 3, fx.Stock(p.ID))
}

func TestProductRepository_ListAndUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewProductRepository(db)
	ctx := context.Background()

	a := fx.Product("A", "10.00", 3)
	fx.Product("B", "5.00", 1)
	require.NoError(t, repo.Update(ctx, a.ID, map[string]interface{}{"is_active": false}))

	active, total, err := repo.List(ctx, true, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, "B", active[0].Name)
	assert.NotNil(t, active[0].Category)

	all, total, err := repo.List(ctx, false, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, repo.Update(ctx, 9999, map[string]interface{}{"name": "x"}), ErrNotFound)
	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductRepository_StockCheckConstraint(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewProductRepository(db)

	p := fx.Product("A", "10.00", 1)
	err := repo.Update(context.Background(), p.ID, map[string]interface{}{"stock_quantity": -1})
	assert.Error(t, err)
	assert.Equal(t, 1, fx.Stock(p.ID))
}

func TestCartRepository_SetQuantityUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewCartRepository(db)
	ctx := context.Background()

	u := fx.User("alice")
	a := fx.Product("A", "10.00", 5)
	b := fx.Product("B", "5.00", 5)

	require.NoError(t, repo.SetQuantity(ctx, u.ID, a.ID, 1))
	require.NoError(t, repo.SetQuantity(ctx, u.ID, b.ID, 2))
	require.NoError(t, repo.SetQuantity(ctx, u.ID, a.ID, 3))

	items, err := repo.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a.ID, items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "A", items[0].Product.Name)
	assert.True(t, items[0].Subtotal().Equal(decimal.RequireFromString("30")))

	item, err := repo.Get(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	require.NoError(t, repo.Delete(ctx, u.ID, b.ID))
	require.NoError(t, repo.Delete(ctx, u.ID, b.ID))
	_, err = repo.Get(ctx, u.ID, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.ClearUser(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, fx.CartSize(u.ID))
}

func TestOrderRepository_CreateAndQuery(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	u := fx.User("alice")
	a := fx.Product("A", "10.00", 5)
	b := fx.Product("B", "5.00", 5)

	order := &model.Order{
		UserID:          u.ID,
		TotalAmount:     decimal.RequireFromString("25.00"),
		Status:          model.OrderStatusPaid,
		IdempotencyKey:  "key-1",
		ShippingAddress: "1 Main St",
		Items: []model.OrderItem{
			{ProductID: a.ID, ProductName: a.Name, Quantity: 2, Price: a.Price},
			{ProductID: b.ID, ProductName: b.Name, Quantity: 1, Price: b.Price},
		},
	}
	require.NoError(t, repo.Create(ctx, order))
	require.NotZero(t, order.ID)
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, got.TotalAmount.Equal(got.ItemsTotal()))

	replay, err := repo.GetByIdempotencyKey(ctx, u.ID, "key-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, replay.ID)

	_, err = repo.GetByIdempotencyKey(ctx, u.ID, "other")
	assert.ErrorIs(t, err, ErrNotFound)

	dup := &model.Order{UserID: u.ID, TotalAmount: decimal.NewFromInt(1), Status: model.OrderStatusPaid, IdempotencyKey: "key-1", ShippingAddress: "x"}
	assert.Error(t, repo.Create(ctx, dup))

	list, err := repo.ListByUser(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestOrderRepository_UpdateStatusIsConditional(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	u := fx.User("alice")
	order := &model.Order{UserID: u.ID, TotalAmount: decimal.NewFromInt(1), Status: model.OrderStatusPaid, IdempotencyKey: "k", ShippingAddress: "x"}
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, model.OrderStatusPaid, model.OrderStatusShipped))
	err := repo.UpdateStatus(ctx, order.ID, model.OrderStatusPaid, model.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrStatusConflict)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, got.Status)
}

func TestOrderRepository_RollbackWithCaller(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	orders := NewOrderRepository(db)
	products := NewProductRepository(db)
	ctx := context.Background()

	u := fx.User("alice")
	p := fx.Product("A", "10.00", 1)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := products.WithTx(tx).DecrementStock(ctx, p.ID, 1); err != nil {
			return err
		}
		order := &model.Order{UserID: u.ID, TotalAmount: p.Price, Status: model.OrderStatusPaid, IdempotencyKey: "k", ShippingAddress: "x"}
		if err := orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fx.Stock(p.ID))
	assert.Zero(t, fx.OrderCount())
}

func TestOutboxRepository_ClaimAndRetry(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, repo.Add(ctx, &model.OutboxEvent{ID: id, Topic: model.TopicOrderPaid, Key: "1", Payload: "{}"}))
	}

	fresh := time.Now().Add(-time.Minute)
	batch, err := repo.Claim(ctx, 2, fresh)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, model.OutboxProcessing, batch[0].Status)

	assert.NotNil(t, batch[0].ClaimedAt)

	again, err := repo.Claim(ctx, 10, fresh)
	require.NoError(t, err)
	require.Len(t, again, 1)

	require.NoError(t, repo.MarkDone(ctx, batch[0].ID))
	require.NoError(t, repo.MarkRetry(ctx, batch[1].ID, errors.New("broker down"), 2))

	pending, err := repo.CountByStatus(ctx, model.OutboxPending)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	retried, err := repo.Claim(ctx, 10, fresh)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	assert.Equal(t, 1, retried[0].Attempts)
	assert.Equal(t, "broker down", retried[0].LastError)

	require.NoError(t, repo.MarkRetry(ctx, retried[0].ID, errors.New("broker down"), 2))
	failed, err := repo.CountByStatus(ctx, model.OutboxFailed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	done, err := repo.CountByStatus(ctx, model.OutboxDone)
	require.NoError(t, err)
	assert.EqualValues(t, 1, done)
}

func TestOutboxRepository_ReclaimsStaleProcessing(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, &model.OutboxEvent{ID: "e1", Topic: model.TopicOrderPaid, Key: "1", Payload: "{}"}))

	claimed, err := repo.Claim(ctx, 10, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// 领取者仍在超时窗口内，不可重复领取
	none, err := repo.Claim(ctx, 10, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, none)

	stale, err := repo.Claim(ctx, 10, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "e1", stale[0].ID)
	assert.False(t, stale[0].ClaimedAt.Before(*claimed[0].ClaimedAt))

	require.NoError(t, repo.MarkDone(ctx, "e1"))
	none, err = repo.Claim(ctx, 10, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, none)
}
