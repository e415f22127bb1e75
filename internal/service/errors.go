package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrEmptyCart          = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrProductNotFound    = errors.New("product not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrCartItemNotFound   = errors.New("cart item not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrOutOfStock         = errors.New("requested quantity exceeds available stock")
	ErrAlreadyExists      = errors.New("already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid order status transition")

	// ErrConflict 并发修改导致失败，可用同一幂等键重试
	ErrConflict           = errors.New("concurrent modification, retry")
	ErrCheckoutInProgress = fmt.Errorf("%w: checkout already in progress", ErrConflict)
)

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InsufficientStockError 请求数量超过库存
type InsufficientStockError struct {
	ProductID uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Is 使 errors.Is(err, ErrOutOfStock) 成立
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrOutOfStock
}

// PaymentFailedError 支付未完成：被拒付，或网关不可用/超时
type PaymentFailedError struct {
	Reason   string
	Declined bool
	Timeout  bool
	Err      error
}

func (e *PaymentFailedError) Error() string {
	return "payment failed: " + e.Reason
}

func (e *PaymentFailedError) Unwrap() error { return e.Err }

// CheckoutAttemptError 结算在确定幂等键之后失败；客户端带回 IdempotencyKey 重试即复用同一支付 intent
type CheckoutAttemptError struct {
	IdempotencyKey string
	Err            error
}

func (e *CheckoutAttemptError) Error() string { return e.Err.Error() }

func (e *CheckoutAttemptError) Unwrap() error { return e.Err }

// IdempotencyKeyOf 返回失败结算使用的幂等键，未确定时返回空串
func IdempotencyKeyOf(err error) string {
	var attempt *CheckoutAttemptError
	if errors.As(err, &attempt) {
		return attempt.IdempotencyKey
	}
	return ""
}
