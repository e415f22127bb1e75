package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/storefront/config"
)

// InitSentry 初始化全局 Sentry hub，未配置 DSN 时返回 false
func InitSentry(cfg config.SentryConfig, release string) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, fmt.Errorf("init sentry: %w", err)
	}
	return true, nil
}

// FlushSentry 等待缓冲事件发送完毕
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}
