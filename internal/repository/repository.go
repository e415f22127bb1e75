package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("repository: record not found")
	// ErrStockConflict 条件扣减库存未命中（库存不足或商品已下架）
	ErrStockConflict = errors.New("repository: stock changed concurrently")
	// ErrStatusConflict 订单状态已被其他请求修改
	ErrStatusConflict = errors.New("repository: order status changed concurrently")
)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
