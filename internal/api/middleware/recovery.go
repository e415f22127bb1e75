package middleware

import (
	"fmt"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/pkg/logger"
	"github.com/d60-Lab/storefront/pkg/response"
)

// Recovery 捕获 panic，记录日志并返回统一 500 响应
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.FromContext(c.Request.Context()).Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"))
		response.InternalError(c, fmt.Errorf("panic: %v", recovered))
	})
}

// Sentry 为每个请求挂载 hub 并重新 panic，由 Recovery 应答客户端
func Sentry() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// ReportErrors 把 5xx 响应上附带的错误上报 Sentry
func ReportErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() < 500 || len(c.Errors) == 0 {
			return
		}
		hub := sentrygin.GetHubFromContext(c)
		if hub == nil {
			return
		}
		hub.Scope().SetTag("route", routeOf(c))
		if rid, ok := c.Get("request_id"); ok {
			hub.Scope().SetTag("request_id", fmt.Sprint(rid))
		}
		for _, e := range c.Errors {
			hub.CaptureException(e.Err)
		}
	}
}
