package httptransport

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/monitoring"
	"mailsync/backend/internal/service"
	"mailsync/backend/internal/storage"
)

// AggregateCache 聚合快照缓存接口（Redis 实现，可选）。
type AggregateCache interface {
	CacheConversations(ctx context.Context, ownerID string, conversations []domain.Conversation) error
	GetCachedConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error)
	CacheContacts(ctx context.Context, ownerID string, contacts []domain.Contact) error
	GetCachedContacts(ctx context.Context, ownerID string) ([]domain.Contact, error)
	CacheSubscriptions(ctx context.Context, ownerID string, subs []domain.Subscription) error
	GetCachedSubscriptions(ctx context.Context, ownerID string) ([]domain.Subscription, error)
	InvalidateOwner(ctx context.Context, ownerID string) error
}

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	sync          *service.SyncService
	conversations *service.ConversationAssembler
	contacts      *service.ContactExtractor
	subscriptions *service.SubscriptionAnalyzer
	outbound      *service.OutboundService
	store         storage.Store
	cache         AggregateCache // 可为 nil
	metrics       *monitoring.Metrics
	log           *zap.Logger
}

// ownerID 从认证中间件写入的上下文中取出账号标识。
func ownerID(c *gin.Context) string {
	return c.GetString("ownerID")
}

// RunSync 手动触发一次批量同步。
func (h *Handler) RunSync(c *gin.Context) {
	start := time.Now()
	summary, err := h.sync.RunBatch(c.Request.Context())
	if err != nil {
		h.log.Error("sync batch aborted", zap.Error(err))
		respondError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.SyncBatchDuration.Observe(time.Since(start).Seconds())
	}

	// 同步写入了新数据，触发者的聚合快照立即作废
	if h.cache != nil {
		if err := h.cache.InvalidateOwner(c.Request.Context(), ownerID(c)); err != nil {
			h.log.Debug("failed to invalidate aggregate cache", zap.Error(err))
		}
	}

	// 部分连接失败不影响批次整体成功，失败数随摘要返回
	if failure := summary.Failure(); failure != nil {
		SuccessWithMsg(c, failure.Error(), summary)
		return
	}
	Success(c, summary)
}

// ListMessages 列出当前用户的缓存邮件（按发送时间倒序）。
func (h *Handler) ListMessages(c *gin.Context) {
	messages, err := h.store.ListMessagesByOwner(ownerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].SentAt.After(messages[j].SentAt)
	})
	Success(c, messages)
}

// MarkMessageRead 将一封缓存邮件标记为已读。
func (h *Handler) MarkMessageRead(c *gin.Context) {
	if err := h.store.MarkMessageRead(ownerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}

// ListConversations 返回当前用户的会话聚合。
func (h *Handler) ListConversations(c *gin.Context) {
	owner := ownerID(c)
	ctx := c.Request.Context()

	if h.cache != nil {
		if cached, err := h.cache.GetCachedConversations(ctx, owner); err == nil {
			Success(c, cached)
			return
		}
	}

	start := time.Now()
	conversations, err := h.conversations.Assemble(owner)
	if err != nil {
		respondError(c, err)
		return
	}
	h.observeAggregation("conversations", start)

	if h.cache != nil {
		if err := h.cache.CacheConversations(ctx, owner, conversations); err != nil {
			h.log.Debug("failed to cache conversations", zap.Error(err))
		}
	}
	Success(c, conversations)
}

// ListContacts 返回当前用户的联系人目录。
func (h *Handler) ListContacts(c *gin.Context) {
	owner := ownerID(c)
	ctx := c.Request.Context()

	if h.cache != nil {
		if cached, err := h.cache.GetCachedContacts(ctx, owner); err == nil {
			Success(c, cached)
			return
		}
	}

	// 账号邮箱由认证令牌携带，并入自有地址排除集合
	var ownAddresses []string
	if email := c.GetString("ownerEmail"); email != "" {
		ownAddresses = append(ownAddresses, email)
	}

	start := time.Now()
	contacts, err := h.contacts.Extract(owner, ownAddresses)
	if err != nil {
		respondError(c, err)
		return
	}
	h.observeAggregation("contacts", start)

	if h.cache != nil {
		if err := h.cache.CacheContacts(ctx, owner, contacts); err != nil {
			h.log.Debug("failed to cache contacts", zap.Error(err))
		}
	}
	Success(c, contacts)
}

// ListSubscriptions 返回当前用户的订阅汇总。
func (h *Handler) ListSubscriptions(c *gin.Context) {
	owner := ownerID(c)
	ctx := c.Request.Context()

	if h.cache != nil {
		if cached, err := h.cache.GetCachedSubscriptions(ctx, owner); err == nil {
			Success(c, cached)
			return
		}
	}

	start := time.Now()
	subs, err := h.subscriptions.Analyze(owner)
	if err != nil {
		respondError(c, err)
		return
	}
	subs = h.subscriptions.AnnotateSummaries(ctx, subs)
	h.observeAggregation("subscriptions", start)

	if h.cache != nil {
		if err := h.cache.CacheSubscriptions(ctx, owner, subs); err != nil {
			h.log.Debug("failed to cache subscriptions", zap.Error(err))
		}
	}
	Success(c, subs)
}

// sendMessageRequest 发送邮件的请求体。
type sendMessageRequest struct {
	ConnectionID string                  `json:"connectionId" binding:"required"`
	To           string                  `json:"to"`
	Subject      string                  `json:"subject"`
	Body         string                  `json:"body"`
	Attachments  []domain.AttachmentBlob `json:"attachments,omitempty"`
}

// sendMessageResponse 发送邮件的响应体。
type sendMessageResponse struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"providerMessageId"`
}

// SendMessage 构建并发送一封出站邮件。
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	conn, err := h.store.GetConnection(req.ConnectionID)
	if err != nil {
		respondError(c, err)
		return
	}
	// 只能通过属于自己的连接发信
	if conn.OwnerID != ownerID(c) {
		NotFound(c, "mailbox connection not found")
		return
	}

	spec := domain.OutboundMessageSpec{
		To:          req.To,
		Subject:     req.Subject,
		Body:        req.Body,
		Attachments: req.Attachments,
	}
	result, err := h.outbound.Send(c.Request.Context(), *conn, spec)
	if err != nil {
		respondError(c, err)
		return
	}

	Success(c, sendMessageResponse{
		Success:           true,
		ProviderMessageID: result.ProviderMessageID,
	})
}

// observeAggregation 记录一次聚合计算耗时。
func (h *Handler) observeAggregation(kind string, start time.Time) {
	if h.metrics != nil {
		h.metrics.AggregationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}
