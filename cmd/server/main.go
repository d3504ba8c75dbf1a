package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	localcache "mailsync/backend/internal/cache"
	"mailsync/backend/internal/config"
	"mailsync/backend/internal/logger"
	"mailsync/backend/internal/mailapi"
	"mailsync/backend/internal/monitoring"
	"mailsync/backend/internal/pool"
	"mailsync/backend/internal/service"
	"mailsync/backend/internal/storage"
	"mailsync/backend/internal/storage/memory"
	"mailsync/backend/internal/storage/postgres"
	rediscache "mailsync/backend/internal/storage/redis"
	httptransport "mailsync/backend/internal/transport/http"
)

// main 启动邮箱同步服务：HTTP API 加定时批量同步。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     cfg.Log.MaxSize,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAge:      cfg.Log.MaxAge,
		Compress:    cfg.Log.Compress,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailsync server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Duration("sync_interval", cfg.Sync.Interval),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = postgres.NewStore(cfg.Database)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 可选的 Redis 聚合快照缓存
	var aggCache httptransport.AggregateCache
	extraChecks := map[string]func() error{}
	if cfg.Redis.Enabled {
		cache, err := rediscache.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Warn("redis unavailable, aggregations will be recomputed per request", zap.Error(err))
		} else {
			aggCache = cache
			extraChecks["redis"] = cache.Health
			defer cache.Close()
			log.Info("redis aggregate cache enabled",
				zap.String("address", cfg.Redis.Address),
				zap.Duration("ttl", cfg.Redis.TTL),
			)
		}
	}
	if aggCache == nil {
		aggCache = localcache.NewLocalCache(cfg.Redis.TTL)
		log.Info("using in-process aggregate cache", zap.Duration("ttl", cfg.Redis.TTL))
	}

	metrics := monitoring.NewMetrics()
	healthHandler := monitoring.NewHealthHandler(store, extraChecks)

	// 远程邮箱 API 客户端
	apiClient := mailapi.NewHTTPClient(cfg.Provider, log)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 订阅摘要标注用的协程池
	workers := pool.NewWorkerPool(4, 64, log)
	workers.Start(ctx)

	// 初始化服务层
	writer := service.NewCacheWriter(store, log)
	syncService := service.NewSyncService(store, writer, apiClient, cfg.Sync, metrics, log)
	conversations := service.NewConversationAssembler(store, log)
	contacts := service.NewContactExtractor(store, store, store, log)
	subscriptions := service.NewSubscriptionAnalyzer(store, nil, workers, log)
	outbound := service.NewOutboundService(apiClient, cfg.Outbound, metrics, log)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		SyncService:     syncService,
		Conversations:   conversations,
		Contacts:        contacts,
		Subscriptions:   subscriptions,
		OutboundService: outbound,
		Store:           store,
		Cache:           aggCache,
		Metrics:         metrics,
		Health:          healthHandler,
		Logger:          log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时批量同步 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Sync.Interval)
		defer ticker.Stop()

		log.Info("starting periodic sync task", zap.Duration("interval", cfg.Sync.Interval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("periodic sync task stopped")
				return nil
			case <-ticker.C:
				start := time.Now()
				summary, err := syncService.RunBatch(groupCtx)
				if err != nil {
					log.Error("scheduled sync batch failed", zap.Error(err))
					continue
				}
				metrics.SyncBatchDuration.Observe(time.Since(start).Seconds())
				if failure := summary.Failure(); failure != nil {
					log.Warn("scheduled sync batch completed with failures", zap.Error(failure))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		workers.Stop()
		if err := store.Close(); err != nil {
			log.Warn("store close warning", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
