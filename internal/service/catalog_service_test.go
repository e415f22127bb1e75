package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/internal/testutil"
)

func newCatalogService(t *testing.T) (CatalogService, *testutil.Fixtures) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewCatalogService(repository.NewCategoryRepository(db), repository.NewProductRepository(db)), testutil.NewFixtures(t, db)
}

func TestCatalogService_CreateAndGet(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: " Books ", Description: "paper"})
	require.NoError(t, err)
	assert.Equal(t, "Books", c.Name)

	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Books"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: ""})
	assert.ErrorIs(t, err, ErrValidation)

	p, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:          "Go in Action",
		Price:         decimal.RequireFromString("39.99"),
		StockQuantity: 4,
		CategoryID:    c.ID,
	})
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	require.NotNil(t, p.Category)
	assert.Equal(t, "Books", p.Category.Name)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "39.99", got.Price.StringFixed(2))

	_, err = svc.GetCategory(ctx, 9999)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCatalogService_CreateProductValidation(t *testing.T) {
	svc, fx := newCatalogService(t)
	ctx := context.Background()
	c := fx.Category()

	cases := map[string]CreateProductInput{
		"empty name":       {Name: " ", Price: decimal.NewFromInt(1), CategoryID: c.ID},
		"zero price":       {Name: "x", Price: decimal.Zero, CategoryID: c.ID},
		"negative price":   {Name: "x", Price: decimal.NewFromInt(-1), CategoryID: c.ID},
		"sub-cent price":   {Name: "x", Price: decimal.RequireFromString("1.005"), CategoryID: c.ID},
		"negative stock":   {Name: "x", Price: decimal.NewFromInt(1), StockQuantity: -1, CategoryID: c.ID},
		"missing category": {Name: "x", Price: decimal.NewFromInt(1)},
		"unknown category": {Name: "x", Price: decimal.NewFromInt(1), CategoryID: 9999},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCatalogService_InactiveHidden(t *testing.T) {
	svc, fx := newCatalogService(t)
	ctx := context.Background()
	a := fx.Product("A", "10.00", 5)
	fx.Product("B", "5.00", 5)

	off := false
	_, err := svc.UpdateProduct(ctx, a.ID, UpdateProductInput{IsActive: &off})
	require.NoError(t, err)

	_, err = svc.GetProduct(ctx, a.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	page, err := svc.ListProducts(ctx, 1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, defaultPageSize, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "B", page.Items[0].Name)
}

func TestCatalogService_ListProductsPaging(t *testing.T) {
	svc, fx := newCatalogService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		fx.Product("P", "1.00", 1)
	}

	page, err := svc.ListProducts(ctx, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Items, 2)

	page, err = svc.ListProducts(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = svc.ListProducts(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, maxPageSize, page.PageSize)
}

func TestCatalogService_UpdateProduct(t *testing.T) {
	svc, fx := newCatalogService(t)
	ctx := context.Background()
	a := fx.Product("A", "10.00", 5)

	price := decimal.RequireFromString("12.50")
	stock := 9
	p, err := svc.UpdateProduct(ctx, a.ID, UpdateProductInput{Price: &price, StockQuantity: &stock})
	require.NoError(t, err)
	assert.Equal(t, "12.50", p.Price.StringFixed(2))
	assert.Equal(t, 9, p.StockQuantity)

	_, err = svc.UpdateProduct(ctx, a.ID, UpdateProductInput{})
	assert.ErrorIs(t, err, ErrValidation)

	neg := -1
	_, err = svc.UpdateProduct(ctx, a.ID, UpdateProductInput{StockQuantity: &neg})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateProduct(ctx, 9999, UpdateProductInput{StockQuantity: &stock})
	assert.ErrorIs(t, err, ErrProductNotFound)
}
