package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/pkg/logger"
)

const spanPrefix = "UC."

// UseCaseRecorder 用例级 RED 指标
type UseCaseRecorder interface {
	ObserveUseCase(useCase, outcome string, elapsed time.Duration)
}

type useCaseRun struct {
	name  string
	rec   UseCaseRecorder
	span  trace.Span
	start time.Time
	log   *zap.Logger
	ctx   context.Context
	note  []zap.Field
}

func startUseCase(ctx context.Context, rec UseCaseRecorder, name, spanName string, attrs ...attribute.KeyValue) (context.Context, *useCaseRun) {
	attrs = append(attrs, attribute.String("use_case", name))
	ctx, span := otel.Tracer("storefront/service").Start(ctx, spanPrefix+spanName, trace.WithAttributes(attrs...))
	return ctx, &useCaseRun{
		name:  name,
		rec:   rec,
		span:  span,
		start: time.Now(),
		log:   logger.FromContext(ctx).With(zap.String("use_case", name)),
		ctx:   ctx,
	}
}

// annotate 附加到结束日志的字段
func (u *useCaseRun) annotate(fields ...zap.Field) {
	u.note = append(u.note, fields...)
}

func (u *useCaseRun) end(err error) {
	outcome := outcomeOf(err)
	lat := time.Since(u.start)

	if err != nil {
		u.span.RecordError(err)
		u.span.SetStatus(codes.Error, outcome)
	} else {
		u.span.SetStatus(codes.Ok, outcome)
	}
	u.span.SetAttributes(attribute.String("outcome", outcome))
	u.span.End()

	if u.rec != nil {
		u.rec.ObserveUseCase(u.name, outcome, lat)
	}

	fields := append([]zap.Field{
		zap.String("outcome", outcome),
		zap.Float64("latency_seconds", lat.Seconds()),
	}, u.note...)
	if sc := trace.SpanContextFromContext(u.ctx); sc.IsValid() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if outcome == "error" || outcome == "payment_error" {
		u.log.Error("use_case_done", fields...)
		return
	}
	u.log.Info("use_case_done", fields...)
}

func outcomeOf(err error) string {
	var pf *PaymentFailedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &pf) && pf.Declined:
		return "payment_declined"
	case errors.As(err, &pf):
		return "payment_error"
	case errors.Is(err, ErrOutOfStock):
		return "insufficient_stock"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrProductUnavailable), errors.Is(err, ErrInvalidTransition):
		return "rejected"
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrCartItemNotFound), errors.Is(err, ErrCategoryNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
