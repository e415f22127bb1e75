// Package middleware API 的 gin 中间件链
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/pkg/logger"
)

// HeaderRequestID 每个响应都会回写
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestLogger 注入请求级 logger（request_id/trace_id），并在请求结束时输出一行访问日志
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.NewString()
		}
		c.Header(HeaderRequestID, rid)
		c.Set("request_id", rid)

		ctx := c.Request.Context()
		fields := []zap.Field{zap.String("request_id", rid)}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()), zap.String("span_id", sc.SpanID().String()))
		}
		c.Request = c.Request.WithContext(logger.WithContext(ctx, base.With(fields...)))

		c.Next()

		status := c.Writer.Status()
		access := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", routeOf(c)),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			access = append(access, zap.String("errors", errs.String()))
		}
		// 认证后 logger 已带上 user_id
		log := logger.FromContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("http_access", access...)
		case status >= 400:
			log.Warn("http_access", access...)
		default:
			log.Info("http_access", access...)
		}
	}
}

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}
