package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
)

const (
	defaultOrderLimit      = 50
	useCaseOrderTransition = "order.update_status"
)

// OrderService 订单查询与状态流转
type OrderService interface {
	// ListForUser 用户订单，按创建时间倒序
	ListForUser(ctx context.Context, user *model.User, limit int) ([]*model.Order, error)
	// GetForUser 订单所有者或管理员可见
	GetForUser(ctx context.Context, user *model.User, id uint) (*model.Order, error)
	// ListRecent 管理端最近订单
	ListRecent(ctx context.Context, limit int) ([]*model.Order, error)
	// UpdateStatus 状态流转；取消订单在同一事务内回补库存
	UpdateStatus(ctx context.Context, id uint, next model.OrderStatus) (*model.Order, error)
}

type orderService struct {
	db       *gorm.DB
	orders   repository.OrderRepository
	products repository.ProductRepository
	outbox   repository.OutboxRepository
	metrics  UseCaseRecorder
}

// NewOrderService 创建订单服务
func NewOrderService(db *gorm.DB, orders repository.OrderRepository, products repository.ProductRepository, outbox repository.OutboxRepository, metrics UseCaseRecorder) OrderService {
	return &orderService{db: db, orders: orders, products: products, outbox: outbox, metrics: metrics}
}

func (s *orderService) ListForUser(ctx context.Context, user *model.User, limit int) ([]*model.Order, error) {
	return s.orders.ListByUser(ctx, user.ID, clampLimit(limit))
}

func (s *orderService) GetForUser(ctx context.Context, user *model.User, id uint) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != user.ID && !user.IsAdmin {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *orderService) ListRecent(ctx context.Context, limit int) ([]*model.Order, error) {
	return s.orders.ListRecent(ctx, clampLimit(limit))
}

func (s *orderService) UpdateStatus(ctx context.Context, id uint, next model.OrderStatus) (_ *model.Order, err error) {
	ctx, uc := startUseCase(ctx, s.metrics, useCaseOrderTransition, "UpdateOrderStatus",
		attribute.Int64("order.id", int64(id)), attribute.String("order.next_status", string(next)))
	defer func() { uc.end(err) }()

	if !next.Valid() {
		return nil, validationf("unknown order status %q", next)
	}

	var updated *model.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders, products := s.orders.WithTx(tx), s.products.WithTx(tx)

		order, err := orders.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		prev := order.Status
		if !prev.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
		}
		if err := orders.UpdateStatus(ctx, id, prev, next); err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				return fmt.Errorf("%w: order %d status changed", ErrConflict, id)
			}
			return err
		}
		if next == model.OrderStatusCancelled {
			for _, it := range order.Items {
				if err := products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
					return fmt.Errorf("restock product %d: %w", it.ProductID, err)
				}
			}
		}
		order.Status = next
		uc.annotate(zap.String("previous_status", string(prev)))
		updated = order
		return publishOrderEvent(ctx, s.outbox.WithTx(tx), model.TopicOrderStatusChanged, order, prev)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultOrderLimit {
		return defaultOrderLimit
	}
	return limit
}
