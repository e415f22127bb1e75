package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/repository"
)

// OrderEvent outbox 中订单事件的载荷
type OrderEvent struct {
	OrderID         uint              `json:"order_id"`
	UserID          uint              `json:"user_id"`
	Status          model.OrderStatus `json:"status"`
	PreviousStatus  model.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount     string            `json:"total_amount"`
	PaymentIntentID string            `json:"payment_intent_id,omitempty"`
	Items           []OrderEventItem  `json:"items,omitempty"`
	OccurredAt      time.Time         `json:"occurred_at"`
}

// OrderEventItem 订单项快照
type OrderEventItem struct {
	ProductID uint   `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// publishOrderEvent 在调用方事务内写入 outbox，与订单写入一同提交或回滚
func publishOrderEvent(ctx context.Context, outbox repository.OutboxRepository, topic string, order *model.Order, previous model.OrderStatus) error {
	ev := OrderEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		TotalAmount:    order.TotalAmount.StringFixed(2),
		OccurredAt:     time.Now().UTC(),
	}
	if order.PaymentIntentID != nil {
		ev.PaymentIntentID = *order.PaymentIntentID
	}
	for _, it := range order.Items {
		ev.Items = append(ev.Items, OrderEventItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price.StringFixed(2)})
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return outbox.Add(ctx, &model.OutboxEvent{
		ID:      uuid.New().String(),
		Topic:   topic,
		Key:     strconv.FormatUint(uint64(order.ID), 10),
		Payload: string(payload),
		Status:  model.OutboxPending,
	})
}
