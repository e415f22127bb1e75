// Package payment 把第三方支付适配为结算所需的两个调用：创建 intent 与确认；适配器自身不重试
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrGateway 网关不可达或响应无法识别；拒付不属于此类
var ErrGateway = errors.New("payment gateway error")

// Status 确认结果
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
)

// IntentHandle 网关侧的支付 intent
type IntentHandle struct {
	ID             string
	ClientSecret   string
	Amount         int64 // minor units
	Currency       string
	IdempotencyKey string
}

// Confirmation 网关对 intent 的确认结果
type Confirmation struct {
	IntentID string
	Status   Status
	Amount   int64
	Reason   string
}

// Confirmed 是否支付成功
func (c Confirmation) Confirmed() bool { return c.Status == StatusConfirmed }

// DeclinedError 创建 intent 时被网关拒付
type DeclinedError struct {
	Reason string
	Code   string
}

func (e *DeclinedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Reason)
	}
	return "payment declined: " + e.Reason
}

// Gateway 结算使用的支付端口
type Gateway interface {
	// CreateIntent 创建 intent，同一幂等键返回已有 intent
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (IntentHandle, error)
	// Confirm 查询 intent 是否已支付
	Confirm(ctx context.Context, handle IntentHandle) (Confirmation, error)
}

// ClientConfirmer 由网关声明是否只能由客户端确认 intent
type ClientConfirmer interface {
	ClientConfirmationOnly() bool
}

// NeedsClientConfirmation 网关无法在服务端完成扣款时为 true，结算须携带客户端已确认的 intent
func NeedsClientConfirmation(g Gateway) bool {
	c, ok := g.(ClientConfirmer)
	return ok && c.ClientConfirmationOnly()
}

// ToMinorUnits 金额转为分
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits 分转为金额
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// IsDecline 是否为拒付
func IsDecline(err error) bool {
	var d *DeclinedError
	return errors.As(err, &d)
}

func gatewayError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGateway, op, err)
}
