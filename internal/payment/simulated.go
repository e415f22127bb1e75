package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation 网关调用名，用于故障注入与指标
type Operation string

const (
	OpCreateIntent Operation = "create_intent"
	OpConfirm      Operation = "confirm"
)

var errInjected = errors.New("injected processor failure")

type simIntent struct {
	handle IntentHandle
	status Status
	reason string
}

// SimulatedGateway 内存支付网关；intent 按幂等键去重，重复 CreateIntent 返回原 intent
type SimulatedGateway struct {
	mu       sync.Mutex
	byID     map[string]*simIntent
	byKey    map[string]string
	latency  time.Duration
	decline  string
	failures map[Operation]int
	calls    map[Operation]int
}

// SimulatedOption SimulatedGateway 选项
type SimulatedOption func(*SimulatedGateway)

// WithLatency 每次调用延迟 d，可被 context 取消
func WithLatency(d time.Duration) SimulatedOption {
	return func(g *SimulatedGateway) { g.latency = d }
}

// NewSimulatedGateway 默认全部批准
func NewSimulatedGateway(opts ...SimulatedOption) *SimulatedGateway {
	g := &SimulatedGateway{
		byID:     make(map[string]*simIntent),
		byKey:    make(map[string]string),
		failures: make(map[Operation]int),
		calls:    make(map[Operation]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DeclineWith 之后的确认以 reason 拒付，空串恢复批准
func (g *SimulatedGateway) DeclineWith(reason string) {
	g.mu.Lock()
	g.decline = reason
	g.mu.Unlock()
}

// FailNext 接下来 n 次 op 调用返回网关错误
func (g *SimulatedGateway) FailNext(op Operation, n int) {
	g.mu.Lock()
	g.failures[op] = n
	g.mu.Unlock()
}

// Calls op 被调用次数
func (g *SimulatedGateway) Calls(op Operation) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// IntentCount 已创建的不同 intent 数
func (g *SimulatedGateway) IntentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.byID)
}

func (g *SimulatedGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (IntentHandle, error) {
	if err := g.enter(ctx, OpCreateIntent); err != nil {
		return IntentHandle{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	minor := ToMinorUnits(amount)
	if id, ok := g.byKey[idempotencyKey]; ok {
		in := g.byID[id]
		if in.handle.Amount != minor || in.handle.Currency != currency {
			return IntentHandle{}, gatewayError(string(OpCreateIntent),
				fmt.Errorf("idempotency key %q reused with different parameters", idempotencyKey))
		}
		return in.handle, nil
	}

	id := "pi_sim_" + uuid.NewString()
	h := IntentHandle{
		ID:             id,
		ClientSecret:   id + "_secret",
		Amount:         minor,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
	}
	g.byID[id] = &simIntent{handle: h}
	g.byKey[idempotencyKey] = id
	return h, nil
}

func (g *SimulatedGateway) Confirm(ctx context.Context, handle IntentHandle) (Confirmation, error) {
	if err := g.enter(ctx, OpConfirm); err != nil {
		return Confirmation{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.byID[handle.ID]
	if !ok {
		return Confirmation{IntentID: handle.ID, Status: StatusDeclined, Reason: "no such payment intent"}, nil
	}
	// 结果一经确定不再改变
	if in.status == "" {
		if g.decline != "" {
			in.status, in.reason = StatusDeclined, g.decline
		} else {
			in.status = StatusConfirmed
		}
	}
	return Confirmation{IntentID: in.handle.ID, Status: in.status, Amount: in.handle.Amount, Reason: in.reason}, nil
}

func (g *SimulatedGateway) enter(ctx context.Context, op Operation) error {
	g.mu.Lock()
	g.calls[op]++
	fail := g.failures[op] > 0
	if fail {
		g.failures[op]--
	}
	latency := g.latency
	g.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return gatewayError(string(op), ctx.Err())
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return gatewayError(string(op), err)
	}
	if fail {
		return gatewayError(string(op), errInjected)
	}
	return nil
}
