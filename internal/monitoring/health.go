package monitoring

import (
	"github.com/heptiolabs/healthcheck"

	"mailsync/backend/internal/storage"
)

// NewHealthHandler 创建健康检查端点处理器。
//
// 存活检查限制协程数量上限；就绪检查验证存储层（以及可选的
// Redis 缓存）可用。
func NewHealthHandler(store storage.Store, extraChecks map[string]func() error) healthcheck.Handler {
	handler := healthcheck.NewHandler()

	handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))
	handler.AddReadinessCheck("store", func() error { return store.Health() })

	for name, check := range extraChecks {
		handler.AddReadinessCheck(name, check)
	}

	return handler
}
