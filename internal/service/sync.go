package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailsync/backend/internal/config"
	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/mailapi"
	"mailsync/backend/internal/monitoring"
	"mailsync/backend/internal/storage"
)

// SyncService 批量同步所有活跃邮箱连接。
//
// 每个连接独立执行 拉取→写缓存，单个连接的失败被捕获并记录，
// 不会中止批次中的其他连接。单次批量运行内不做重试，下一次
// 调度即是重试机制。
type SyncService struct {
	connections storage.ConnectionRepository
	writer      *CacheWriter
	client      mailapi.Client
	cfg         config.SyncConfig
	metrics     *monitoring.Metrics
	log         *zap.Logger
}

// NewSyncService 创建同步调度服务。
func NewSyncService(
	connections storage.ConnectionRepository,
	writer *CacheWriter,
	client mailapi.Client,
	cfg config.SyncConfig,
	metrics *monitoring.Metrics,
	log *zap.Logger,
) *SyncService {
	return &SyncService{
		connections: connections,
		writer:      writer,
		client:      client,
		cfg:         cfg,
		metrics:     metrics,
		log:         log,
	}
}

// SyncSummary 一次批量同步的结果统计。
type SyncSummary struct {
	Processed int `json:"processed"` // 本批次处理的连接总数
	Failed    int `json:"failed"`    // 其中失败的连接数
	Cached    int `json:"cached"`    // 成功写入缓存的邮件数
}

// Failure 当批次内有连接失败时返回对应的错误，否则返回 nil。
//
// 批次整体仍视为成功，这里只是给需要错误语义的调用方用。
func (s SyncSummary) Failure() error {
	if s.Failed > 0 {
		return &domain.PartialBatchFailure{Processed: s.Processed, Failed: s.Failed}
	}
	return nil
}

// RunBatch 执行一次批量同步。
//
// 只有在连接列表本身无法读取时才返回错误；单个连接的失败
// 体现在摘要的 Failed 计数里。
func (s *SyncService) RunBatch(ctx context.Context) (SyncSummary, error) {
	conns, err := s.connections.ListActiveConnections()
	if err != nil {
		return SyncSummary{}, fmt.Errorf("list active connections: %w", err)
	}

	var failed, cached atomic.Int64

	// 各连接的数据互不相交，可以安全并行；worker 永远返回 nil
	// 以保证一个连接的失败不会取消其余连接
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			n, err := s.syncConnection(ctx, conn)
			if err != nil {
				failed.Add(1)
				s.log.Warn("connection sync failed",
					zap.String("owner_id", conn.OwnerID),
					zap.String("connection_id", conn.ID),
					zap.Error(err),
				)
				return nil
			}
			cached.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	summary := SyncSummary{
		Processed: len(conns),
		Failed:    int(failed.Load()),
		Cached:    int(cached.Load()),
	}

	if s.metrics != nil {
		s.metrics.SyncBatchesTotal.Inc()
		s.metrics.SyncConnectionsProcessed.Add(float64(summary.Processed))
		s.metrics.SyncConnectionsFailed.Add(float64(summary.Failed))
		s.metrics.MessagesCached.Add(float64(summary.Cached))
	}

	s.log.Info("sync batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("cached", summary.Cached),
	)
	return summary, nil
}

// syncConnection 同步单个连接：拉取远程邮件并写入缓存。
func (s *SyncService) syncConnection(ctx context.Context, conn domain.MailboxConnection) (int, error) {
	raws, err := s.client.List(ctx, conn, s.cfg.Query, s.cfg.PageSize)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	written, err := s.writer.WriteBatch(conn.OwnerID, raws)
	if err != nil {
		return written, fmt.Errorf("write cache: %w", err)
	}
	return written, nil
}
