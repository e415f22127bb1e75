package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/storefront/internal/model"
)

// CartRepository 购物车仓储接口
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	// Get 查询单个条目（含商品）
	Get(ctx context.Context, userID, productID uint) (*model.CartItem, error)
	// SetQuantity 写入数量，不存在则插入
	SetQuantity(ctx context.Context, userID, productID uint, qty int) error
	// Delete 删除条目，不存在时不报错
	Delete(ctx context.Context, userID, productID uint) error
	// ListByUser 按加入时间排序，预加载商品
	ListByUser(ctx context.Context, userID uint) ([]*model.CartItem, error)
	// ClearUser 清空用户购物车
	ClearUser(ctx context.Context, userID uint) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &cartRepository{db: tx}
}

func (r *cartRepository) Get(ctx context.Context, userID, productID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *cartRepository) SetQuantity(ctx context.Context, userID, productID uint, qty int) error {
	now := time.Now().UTC()
	item := &model.CartItem{UserID: userID, ProductID: productID, Quantity: qty, CreatedAt: now, UpdatedAt: now}
	return r.db.WithContext(ctx).
		Omit("Product").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error
}

func (r *cartRepository) Delete(ctx context.Context, userID, productID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&model.CartItem{}).Error
}

func (r *cartRepository) ListByUser(ctx context.Context, userID uint) ([]*model.CartItem, error) {
	var items []*model.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at").Order("id").
		Find(&items).Error
	return items, err
}

func (r *cartRepository) ClearUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.CartItem{})
	return res.RowsAffected, res.Error
}
