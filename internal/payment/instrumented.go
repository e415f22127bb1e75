package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/pkg/logger"
)

// Recorder 每次网关调用记录一次
type Recorder interface {
	ObserveGateway(operation, outcome string, elapsed time.Duration)
}

type instrumented struct {
	next Gateway
	rec  Recorder
}

// Instrument 为网关调用加上指标、span 与日志
func Instrument(g Gateway, rec Recorder) Gateway {
	return &instrumented{next: g, rec: rec}
}

func (i *instrumented) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey string) (h IntentHandle, err error) {
	ctx, done := i.observe(ctx, OpCreateIntent, attribute.String("payment.idempotency_key", idempotencyKey))
	defer func() { done(outcomeOf(err, nil)) }()
	return i.next.CreateIntent(ctx, amount, currency, idempotencyKey)
}

func (i *instrumented) Confirm(ctx context.Context, handle IntentHandle) (c Confirmation, err error) {
	ctx, done := i.observe(ctx, OpConfirm, attribute.String("payment.intent_id", handle.ID))
	defer func() { done(outcomeOf(err, &c)) }()
	return i.next.Confirm(ctx, handle)
}

func (i *instrumented) ClientConfirmationOnly() bool {
	return NeedsClientConfirmation(i.next)
}

func (i *instrumented) observe(ctx context.Context, op Operation, attrs ...attribute.KeyValue) (context.Context, func(string)) {
	start := time.Now()
	ctx, span := otel.Tracer("storefront/payment").Start(ctx, "payment."+string(op))
	span.SetAttributes(attrs...)
	return ctx, func(outcome string) {
		elapsed := time.Since(start)
		span.SetAttributes(attribute.String("payment.outcome", outcome))
		if outcome == "error" {
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if i.rec != nil {
			i.rec.ObserveGateway(string(op), outcome, elapsed)
		}
		logger.FromContext(ctx).Debug("payment_gateway_call",
			zap.String("operation", string(op)),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed),
		)
	}
}

func outcomeOf(err error, c *Confirmation) string {
	switch {
	case err != nil && IsDecline(err):
		return "declined"
	case err != nil:
		return "error"
	case c != nil && c.Status == StatusDeclined:
		return "declined"
	default:
		return "success"
	}
}
