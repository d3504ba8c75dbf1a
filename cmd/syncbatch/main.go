package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"mailsync/backend/internal/config"
	"mailsync/backend/internal/logger"
	"mailsync/backend/internal/mailapi"
	"mailsync/backend/internal/service"
	"mailsync/backend/internal/storage"
	"mailsync/backend/internal/storage/memory"
	"mailsync/backend/internal/storage/postgres"
)

// main 执行一次批量同步后退出，适合 cron 或手工运维触发。
//
// 退出码：0 全部成功；1 批次无法启动；2 批次完成但有连接失败。
func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "批次整体超时时间")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
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
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = postgres.NewStore(cfg.Database)
		if err != nil {
			log.Fatal("failed to initialize database storage", zap.Error(err))
		}
	} else {
		store = memory.NewStore()
		log.Warn("no database configured, running against empty memory store")
	}
	defer store.Close()

	apiClient := mailapi.NewHTTPClient(cfg.Provider, log)
	writer := service.NewCacheWriter(store, log)
	syncService := service.NewSyncService(store, writer, apiClient, cfg.Sync, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := syncService.RunBatch(ctx)
	if err != nil {
		log.Error("sync batch failed to start", zap.Error(err))
		os.Exit(1)
	}

	log.Info("sync batch completed",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("cached", summary.Cached),
	)
	if summary.Failure() != nil {
		os.Exit(2)
	}
}
