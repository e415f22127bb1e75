package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder 每个请求记录一次
type HTTPRecorder interface {
	ObserveHTTP(method, route, status string, elapsed time.Duration)
}

// Metrics 按路由模板（而非原始路径）记录 RED 指标
func Metrics(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if rec == nil {
			return
		}
		rec.ObserveHTTP(c.Request.Method, routeOf(c), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
