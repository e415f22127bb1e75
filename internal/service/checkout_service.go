package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/storefront/internal/model"
	"github.com/d60-Lab/storefront/internal/payment"
	"github.com/d60-Lab/storefront/internal/repository"
)

const (
	useCaseCheckout      = "checkout"
	useCaseCreateIntent  = "checkout.create_intent"
	maxIdempotencyKeyLen = 64
)

// CheckoutInput 结算请求
type CheckoutInput struct {
	ShippingAddress string
	// IdempotencyKey 为空时为本次尝试生成新键；客户端重试时应带上同一个键
	IdempotencyKey string
	// PaymentIntentID 非空表示浏览器已用 client secret 完成支付，只需确认
	PaymentIntentID string
}

// CheckoutResult 结算结果
type CheckoutResult struct {
	Order    *model.Order
	Replayed bool
}

// PaymentIntentResult 两步支付中返回给浏览器的 intent
type PaymentIntentResult struct {
	IntentID       string          `json:"payment_intent_id"`
	ClientSecret   string          `json:"client_secret"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// CheckoutService 结算编排：购物车 -> 支付 -> 订单/扣库存/清空购物车（原子）
type CheckoutService interface {
	Checkout(ctx context.Context, user *model.User, in CheckoutInput) (*CheckoutResult, error)
	CreatePaymentIntent(ctx context.Context, user *model.User) (*PaymentIntentResult, error)
}

// CheckoutDeps 结算依赖
type CheckoutDeps struct {
	DB             *gorm.DB
	Carts          repository.CartRepository
	Products       repository.ProductRepository
	Orders         repository.OrderRepository
	Outbox         repository.OutboxRepository
	Gateway        payment.Gateway
	Locker         CheckoutLocker
	Metrics        UseCaseRecorder
	Currency       string
	PaymentTimeout time.Duration
}

type checkoutService struct {
	CheckoutDeps
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(d CheckoutDeps) CheckoutService {
	if d.Locker == nil {
		d.Locker = NewLocalCheckoutLocker()
	}
	if d.Currency == "" {
		d.Currency = "usd"
	}
	if d.PaymentTimeout <= 0 {
		d.PaymentTimeout = 10 * time.Second
	}
	return &checkoutService{CheckoutDeps: d}
}

type cartLine struct {
	productID uint
	name      string
	price     decimal.Decimal
	quantity  int
}

type cartSnapshot struct {
	lines []cartLine
	total decimal.Decimal
}

func (s *cartSnapshot) matches(items []*model.CartItem) bool {
	if len(items) != len(s.lines) {
		return false
	}
	want := make(map[uint]int, len(s.lines))
	for _, l := range s.lines {
		want[l.productID] = l.quantity
	}
	for _, it := range items {
		if q, ok := want[it.ProductID]; !ok || q != it.Quantity {
			return false
		}
	}
	return true
}

func (s *checkoutService) Checkout(ctx context.Context, user *model.User, in CheckoutInput) (_ *CheckoutResult, err error) {
	if user == nil {
		return nil, validationf("authenticated user is required")
	}
	ctx, uc := startUseCase(ctx, s.Metrics, useCaseCheckout, "Checkout", attribute.Int64("user.id", int64(user.ID)))
	defer func() { uc.end(err) }()

	address := strings.TrimSpace(in.ShippingAddress)
	if address == "" {
		return nil, validationf("shipping address is required")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, validationf("idempotency key longer than %d characters", maxIdempotencyKeyLen)
	}
	if strings.TrimSpace(in.PaymentIntentID) == "" && payment.NeedsClientConfirmation(s.Gateway) {
		return nil, validationf("payment_intent_id is required: confirm the intent from the payment-intent endpoint on the client first")
	}

	release, err := s.Locker.Acquire(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if key != "" {
		existing, lookupErr := s.Orders.GetByIdempotencyKey(ctx, user.ID, key)
		switch {
		case lookupErr == nil:
			uc.annotate(zap.Uint("order_id", existing.ID), zap.Bool("replayed", true))
			return &CheckoutResult{Order: existing, Replayed: true}, nil
		case !errors.Is(lookupErr, repository.ErrNotFound):
			return nil, fmt.Errorf("idempotency lookup: %w", lookupErr)
		}
	} else {
		key = uuid.NewString()
	}
	uc.annotate(zap.String("idempotency_key", key))

	order, replayed, err := s.checkoutWithKey(ctx, uc, user.ID, key, in.PaymentIntentID, address)
	if err != nil {
		return nil, &CheckoutAttemptError{IdempotencyKey: key, Err: err}
	}
	if replayed {
		return &CheckoutResult{Order: order, Replayed: true}, nil
	}
	uc.annotate(zap.Uint("order_id", order.ID), zap.String("total", order.TotalAmount.StringFixed(2)))
	return &CheckoutResult{Order: order}, nil
}

// checkoutWithKey 幂等键确定之后的步骤：快照、支付、落单
func (s *checkoutService) checkoutWithKey(ctx context.Context, uc *useCaseRun, userID uint, key, intentID, address string) (*model.Order, bool, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID != "" {
		if _, lookupErr := s.Orders.GetByPaymentIntentID(ctx, intentID); lookupErr == nil {
			return nil, false, validationf("payment intent %s already used by another order", intentID)
		} else if !errors.Is(lookupErr, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("payment intent lookup: %w", lookupErr)
		}
	}

	snap, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	handle, err := s.pay(ctx, snap, key, intentID)
	if err != nil {
		return nil, false, err
	}
	uc.annotate(zap.String("payment_intent_id", handle.ID))

	order, err := s.commit(ctx, userID, snap, key, handle.ID, address)
	if err != nil {
		// 另一请求已用同一键落单（多实例且未启用分布式锁时）
		if existing, lookupErr := s.Orders.GetByIdempotencyKey(context.WithoutCancel(ctx), userID, key); lookupErr == nil {
			return existing, true, nil
		}
		return nil, false, err
	}
	return order, false, nil
}

func (s *checkoutService) CreatePaymentIntent(ctx context.Context, user *model.User) (_ *PaymentIntentResult, err error) {
	if user == nil {
		return nil, validationf("authenticated user is required")
	}
	ctx, uc := startUseCase(ctx, s.Metrics, useCaseCreateIntent, "CreatePaymentIntent", attribute.Int64("user.id", int64(user.ID)))
	defer func() { uc.end(err) }()

	snap, err := s.snapshot(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	key := uuid.NewString()

	pctx, cancel := context.WithTimeout(ctx, s.PaymentTimeout)
	defer cancel()
	handle, err := retryOnce(pctx, func() (payment.IntentHandle, error) {
		return s.Gateway.CreateIntent(pctx, snap.total, s.Currency, key)
	})
	if err != nil {
		return nil, paymentFailure(ctx, err)
	}
	return &PaymentIntentResult{
		IntentID:       handle.ID,
		ClientSecret:   handle.ClientSecret,
		Amount:         snap.total,
		Currency:       s.Currency,
		IdempotencyKey: key,
	}, nil
}

// snapshot 读取购物车并校验上架状态与库存；库存不足整单失败
func (s *checkoutService) snapshot(ctx context.Context, userID uint) (*cartSnapshot, error) {
	items, err := s.Carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	snap := &cartSnapshot{total: decimal.Zero}
	for _, it := range items {
		p := it.Product
		if !p.IsActive {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, p.ID)
		}
		if p.StockQuantity < it.Quantity {
			return nil, &InsufficientStockError{ProductID: p.ID, Requested: it.Quantity, Available: p.StockQuantity}
		}
		snap.lines = append(snap.lines, cartLine{productID: p.ID, name: p.Name, price: p.Price, quantity: it.Quantity})
		snap.total = snap.total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return snap, nil
}

// pay 创建并确认支付；网关错误最多用同一幂等键重试一次，拒付不重试
func (s *checkoutService) pay(ctx context.Context, snap *cartSnapshot, key, intentID string) (payment.IntentHandle, error) {
	pctx, cancel := context.WithTimeout(ctx, s.PaymentTimeout)
	defer cancel()

	handle := payment.IntentHandle{ID: intentID, IdempotencyKey: key}
	if intentID == "" {
		var err error
		handle, err = retryOnce(pctx, func() (payment.IntentHandle, error) {
			return s.Gateway.CreateIntent(pctx, snap.total, s.Currency, key)
		})
		if err != nil {
			return payment.IntentHandle{}, paymentFailure(ctx, err)
		}
	}

	conf, err := retryOnce(pctx, func() (payment.Confirmation, error) {
		return s.Gateway.Confirm(pctx, handle)
	})
	if err != nil {
		return payment.IntentHandle{}, paymentFailure(ctx, err)
	}
	if !conf.Confirmed() {
		return payment.IntentHandle{}, &PaymentFailedError{Reason: conf.Reason, Declined: true}
	}
	if conf.Amount != payment.ToMinorUnits(snap.total) {
		return payment.IntentHandle{}, &PaymentFailedError{
			Reason:   fmt.Sprintf("paid amount %s does not match cart total %s", payment.FromMinorUnits(conf.Amount).StringFixed(2), snap.total.StringFixed(2)),
			Declined: true,
		}
	}
	return handle, nil
}

// commit 单事务写订单、扣库存、清购物车、写 outbox；不受调用方取消影响
func (s *checkoutService) commit(ctx context.Context, userID uint, snap *cartSnapshot, key, intentID, address string) (*model.Order, error) {
	wctx := context.WithoutCancel(ctx)
	order := &model.Order{
		UserID:          userID,
		TotalAmount:     snap.total,
		Status:          model.OrderStatusPaid,
		PaymentIntentID: &intentID,
		IdempotencyKey:  key,
		ShippingAddress: address,
	}
	for _, l := range snap.lines {
		order.Items = append(order.Items, model.OrderItem{
			ProductID:   l.productID,
			ProductName: l.name,
			Quantity:    l.quantity,
			Price:       l.price,
		})
	}

	err := s.DB.WithContext(wctx).Transaction(func(tx *gorm.DB) error {
		carts, products := s.Carts.WithTx(tx), s.Products.WithTx(tx)

		current, err := carts.ListByUser(wctx, userID)
		if err != nil {
			return err
		}
		if !snap.matches(current) {
			return fmt.Errorf("%w: cart changed during checkout", ErrConflict)
		}
		for _, l := range snap.lines {
			if err := products.DecrementStock(wctx, l.productID, l.quantity); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					return fmt.Errorf("%w: stock of product %d changed during checkout", ErrConflict, l.productID)
				}
				return err
			}
		}
		if err := s.Orders.WithTx(tx).Create(wctx, order); err != nil {
			return err
		}
		if _, err := carts.ClearUser(wctx, userID); err != nil {
			return err
		}
		return publishOrderEvent(wctx, s.Outbox.WithTx(tx), model.TopicOrderPaid, order, "")
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("commit checkout: %w", err)
	}
	return order, nil
}

func retryOnce[T any](ctx context.Context, call func() (T, error)) (T, error) {
	v, err := call()
	if err == nil || !errors.Is(err, payment.ErrGateway) || ctx.Err() != nil {
		return v, err
	}
	return call()
}

func paymentFailure(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var declined *payment.DeclinedError
	if errors.As(err, &declined) {
		return &PaymentFailedError{Reason: declined.Reason, Declined: true, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &PaymentFailedError{Reason: "payment gateway timed out", Timeout: true, Err: err}
	}
	return &PaymentFailedError{Reason: "payment gateway unavailable", Err: err}
}
