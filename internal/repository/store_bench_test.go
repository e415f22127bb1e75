package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/testutil"
)

func BenchmarkCartWrite_And_List(b *testing.B) {
	db := testutil.NewDB(b)
	fx := testutil.NewFixtures(b, db)
	cartRepo := NewCartRepository(db)
	ctx := context.Background()

	// 预创建用户与商品
	users := make([]*model.User, 200)
	for i := range users {
		users[i] = fx.User(fmt.Sprintf("u%04d", i))
	}
	products := make([]*model.Product, 50)
	for i := range products {
		products[i] = fx.Product(fmt.Sprintf("p%03d", i), "9.99", 1_000_000)
	}

	rng := rand.New(rand.NewSource(1))
	b.ResetTimer()
	b.Run("SetQuantity", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			u := users[rng.Intn(len(users))]
			p := products[rng.Intn(len(products))]
			_ = cartRepo.SetQuantity(ctx, u.ID, p.ID, 1+rng.Intn(5))
		}
	})

	b.Run("ListByUser", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cartRepo.ListByUser(ctx, users[rng.Intn(len(users))].ID)
		}
	})
}

func BenchmarkConditionalStockDecrement(b *testing.B) {
	db := testutil.NewDB(b)
	fx := testutil.NewFixtures(b, db)
	productRepo := NewProductRepository(db)
	ctx := context.Background()

	p := fx.Product("hot", "1.00", b.N+1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := productRepo.DecrementStock(ctx, p.ID, 1); err != nil {
			b.Fatalf("decrement: %v", err)
		}
	}
}
