package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
)

// CartView 购物车视图
type CartView struct {
	Items []*model.CartItem
	Total decimal.Decimal
	Count int
}

// CartService 购物车服务；所有操作对最终状态幂等
type CartService interface {
	// Add 在已有数量上累加
	Add(ctx context.Context, userID, productID uint, qty int) (*model.CartItem, error)
	// Update 设置数量，0 等价于 Remove，返回 nil 条目
	Update(ctx context.Context, userID, productID uint, qty int) (*model.CartItem, error)
	// Remove 删除条目，不存在时为空操作
	Remove(ctx context.Context, userID, productID uint) error
	List(ctx context.Context, userID uint) (*CartView, error)
}

type cartService struct {
	db       *gorm.DB
	carts    repository.CartRepository
	products repository.ProductRepository
}

// NewCartService 创建购物车服务
func NewCartService(db *gorm.DB, carts repository.CartRepository, products repository.ProductRepository) CartService {
	return &cartService{db: db, carts: carts, products: products}
}

func (s *cartService) Add(ctx context.Context, userID, productID uint, qty int) (*model.CartItem, error) {
	if qty < 1 {
		return nil, validationf("quantity must be at least 1")
	}
	var item *model.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		carts, products := s.carts.WithTx(tx), s.products.WithTx(tx)

		p, err := s.purchasable(ctx, products, productID)
		if err != nil {
			return err
		}
		current := 0
		existing, err := carts.Get(ctx, userID, productID)
		switch {
		case err == nil:
			current = existing.Quantity
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		want := current + qty
		if want > p.StockQuantity {
			return &InsufficientStockError{ProductID: p.ID, Requested: want, Available: p.StockQuantity}
		}
		if err := carts.SetQuantity(ctx, userID, productID, want); err != nil {
			return err
		}
		item, err = carts.Get(ctx, userID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) Update(ctx context.Context, userID, productID uint, qty int) (*model.CartItem, error) {
	if qty < 0 {
		return nil, validationf("quantity must not be negative")
	}
	if qty == 0 {
		return nil, s.Remove(ctx, userID, productID)
	}
	var item *model.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		carts, products := s.carts.WithTx(tx), s.products.WithTx(tx)

		if _, err := carts.Get(ctx, userID, productID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCartItemNotFound
			}
			return err
		}
		p, err := s.purchasable(ctx, products, productID)
		if err != nil {
			return err
		}
		if qty > p.StockQuantity {
			return &InsufficientStockError{ProductID: p.ID, Requested: qty, Available: p.StockQuantity}
		}
		if err := carts.SetQuantity(ctx, userID, productID, qty); err != nil {
			return err
		}
		item, err = carts.Get(ctx, userID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) Remove(ctx context.Context, userID, productID uint) error {
	return s.carts.Delete(ctx, userID, productID)
}

func (s *cartService) List(ctx context.Context, userID uint) (*CartView, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &CartView{Items: items, Total: decimal.Zero}
	for _, it := range items {
		view.Total = view.Total.Add(it.Subtotal())
		view.Count += it.Quantity
	}
	return view, nil
}

func (s *cartService) purchasable(ctx context.Context, products repository.ProductRepository, id uint) (*model.Product, error) {
	p, err := products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProductUnavailable
	}
	return p, nil
}
