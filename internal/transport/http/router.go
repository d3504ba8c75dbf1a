package httptransport

import (
	"strconv"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailsync/backend/internal/config"
	"mailsync/backend/internal/middleware"
	"mailsync/backend/internal/monitoring"
	"mailsync/backend/internal/service"
	"mailsync/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	SyncService     *service.SyncService
	Conversations   *service.ConversationAssembler
	Contacts        *service.ContactExtractor
	Subscriptions   *service.SubscriptionAnalyzer
	OutboundService *service.OutboundService
	Store           storage.Store
	Cache           AggregateCache      // 可为 nil
	Metrics         *monitoring.Metrics // 可为 nil
	Health          healthcheck.Handler
	Logger          *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		router.Use(metricsMiddleware(deps.Metrics))
	}

	// 请求体上限按出站附件总量上限放宽，外加 MIME 元数据余量
	router.Use(middleware.BodySizeLimit(deps.Config.Outbound.MaxAttachmentBytes + 1024*1024))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		sync:          deps.SyncService,
		conversations: deps.Conversations,
		contacts:      deps.Contacts,
		subscriptions: deps.Subscriptions,
		outbound:      deps.OutboundService,
		store:         deps.Store,
		cache:         deps.Cache,
		metrics:       deps.Metrics,
		log:           deps.Logger,
	}

	tokenAuth := middleware.NewTokenAuth(deps.Config.JWT, deps.Logger)

	// 健康检查与指标
	router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
	router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(tokenAuth.RequireAuth())
	{
		api.POST("/sync", handler.RunSync)

		api.GET("/messages", handler.ListMessages)
		api.POST("/messages/:id/read", handler.MarkMessageRead)
		api.POST("/messages/send", handler.SendMessage)

		api.GET("/conversations", handler.ListConversations)
		api.GET("/contacts", handler.ListContacts)
		api.GET("/subscriptions", handler.ListSubscriptions)
	}

	return router
}

// metricsMiddleware 记录每个请求的计数与耗时。
func metricsMiddleware(m *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}
