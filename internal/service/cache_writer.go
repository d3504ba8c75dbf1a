package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/storage"
)

// CacheWriter 将远程 API 的原始邮件记录规范化后写入本地缓存。
//
// 写入以 (OwnerID, 邮件 ID) 为键做幂等 upsert：同一封邮件重复同步
// 不会产生重复记录；未读标记仅在来源显式给出时才覆盖已有值。
type CacheWriter struct {
	messages storage.MessageRepository
	log      *zap.Logger
}

// NewCacheWriter 创建缓存写入器。
func NewCacheWriter(messages storage.MessageRepository, log *zap.Logger) *CacheWriter {
	return &CacheWriter{messages: messages, log: log}
}

// WriteBatch 规范化并写入一批原始邮件，返回成功写入的数量。
//
// 单条记录格式不合法只跳过并记告警，不影响批内其余记录；
// 存储层失败则中止并向上传播。
func (w *CacheWriter) WriteBatch(ownerID string, raws []domain.RawMessage) (int, error) {
	written := 0
	for i, raw := range raws {
		message, err := w.normalize(ownerID, int64(i), raw)
		if err != nil {
			w.log.Warn("skipping malformed raw message",
				zap.String("owner_id", ownerID),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}

		// 已缓存的邮件保留首次抓取信息；未读标记以来源显式给出为准
		if existing, err := w.messages.GetMessage(ownerID, message.ID); err == nil {
			message.FetchSeq = existing.FetchSeq
			message.CreatedAt = existing.CreatedAt
			if raw.Unread == nil {
				message.Unread = existing.Unread
			}
			if message.Body == "" {
				message.Body = existing.Body
			}
		}

		if err := w.messages.UpsertMessage(message); err != nil {
			return written, fmt.Errorf("upsert message %s: %w", message.ID, err)
		}
		written++
	}
	return written, nil
}

// normalize 将原始记录映射为规范的缓存邮件。
func (w *CacheWriter) normalize(ownerID string, fetchSeq int64, raw domain.RawMessage) (*domain.CachedMessage, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	fromName, fromAddr := domain.SplitAddress(raw.From)
	toName, toAddr := domain.SplitAddress(raw.To)

	unsubURL := raw.UnsubscribeURL
	if unsubURL == "" {
		unsubURL = extractUnsubscribeURL(raw.ListUnsubscribe)
	}

	now := time.Now().UTC()
	message := &domain.CachedMessage{
		ID:             raw.ID,
		OwnerID:        ownerID,
		ThreadID:       raw.ThreadID,
		FromAddress:    domain.NormalizeAddress(fromAddr),
		FromName:       fromName,
		ToAddress:      domain.NormalizeAddress(toAddr),
		ToName:         toName,
		Subject:        raw.Subject,
		Snippet:        raw.Snippet,
		Body:           raw.Body,
		SentAt:         w.resolveSentAt(raw, now),
		HasUnsubscribe: raw.ListUnsubscribe != "" || unsubURL != "",
		UnsubscribeURL: unsubURL,
		FetchSeq:       fetchSeq,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if raw.Unread != nil {
		message.Unread = *raw.Unread
	}

	for _, att := range raw.Attachments {
		message.Attachments = append(message.Attachments, domain.Attachment{
			Filename:    att.Filename,
			ContentType: att.MimeType,
			Size:        att.Size,
			RemoteRef:   att.AttachmentID,
		})
	}

	return message, nil
}

// resolveSentAt 将来源提供的多种日期表示统一为 UTC 时间戳。
//
// 优先使用毫秒级 internalDate；其次解析 RFC 5322 日期头；
// 都缺失时退回当前时间，保证排序仍然可用。
func (w *CacheWriter) resolveSentAt(raw domain.RawMessage, fallback time.Time) time.Time {
	if raw.InternalDate > 0 {
		return time.UnixMilli(raw.InternalDate).UTC()
	}
	if raw.Date != "" {
		if t, err := mail.ParseDate(raw.Date); err == nil {
			return t.UTC()
		}
		if t, err := time.Parse(time.RFC3339, raw.Date); err == nil {
			return t.UTC()
		}
		w.log.Debug("unparseable message date", zap.String("message_id", raw.ID), zap.String("date", raw.Date))
	}
	return fallback
}

// urlPattern 从 List-Unsubscribe 头中提取 http(s) 链接。
var urlPattern = regexp.MustCompile(`<(https?://[^>]+)>`)

// extractUnsubscribeURL 解析 List-Unsubscribe 头原文中的第一个 URL。
//
// 头的形式通常为 "<https://...>, <mailto:...>"，mailto 链接被忽略。
func extractUnsubscribeURL(header string) string {
	if header == "" {
		return ""
	}
	if m := urlPattern.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	// 个别发件方不带尖括号
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "http://") || strings.HasPrefix(part, "https://") {
			return part
		}
	}
	return ""
}
