package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/internal/model"
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// WithTx 绑定到调用方开启的事务
	WithTx(tx *gorm.DB) OrderRepository

	// Create 创建订单及订单项
	Create(ctx context.Context, order *model.Order) error

	// GetByID 根据订单ID查询订单（含订单项）
	GetByID(ctx context.Context, id uint) (*model.Order, error)

	// GetByIdempotencyKey 根据幂等键查询用户订单
	GetByIdempotencyKey(ctx context.Context, userID uint, key string) (*model.Order, error)

	// GetByPaymentIntentID 根据支付 intent 查询订单
	GetByPaymentIntentID(ctx context.Context, intentID string) (*model.Order, error)

	// ListByUser 根据用户ID查询订单列表，按创建时间倒序
	ListByUser(ctx context.Context, userID uint, limit int) ([]*model.Order, error)

	// ListRecent 查询最近订单
	ListRecent(ctx context.Context, limit int) ([]*model.Order, error)

	// UpdateStatus 条件更新订单状态，当前状态不是 from 时返回 ErrStatusConflict
	UpdateStatus(ctx context.Context, id uint, from, to model.OrderStatus) error

	// Count 统计订单数量
	Count(ctx context.Context) (int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items", orderItemsByID).First(&order, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, userID uint, key string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Where("payment_intent_id = ?", intentID).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uint, from, to model.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&count).Error
	return count, err
}

func orderItemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}
