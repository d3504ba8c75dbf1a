package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailsync/backend/internal/config"
	"mailsync/backend/internal/domain"
	"mailsync/backend/internal/mailapi"
	"mailsync/backend/internal/monitoring"
	"mailsync/backend/internal/security"
)

const (
	// base64 正文按 RFC 2045 要求的列宽换行
	base64LineWidth = 76
	// 边界令牌与各部分内容碰撞时的最大重新生成次数
	maxBoundaryAttempts = 5
)

// OutboundService 构建出站邮件信封并提交到远程 API。
//
// 校验与大小检查都发生在任何编码工作之前（快速失败）；
// 发送受硬性截止时间约束，超时后放弃在途请求并返回
// TimeoutError，不做自动重试。
type OutboundService struct {
	client  mailapi.Client
	cfg     config.OutboundConfig
	screen  *security.AttachmentScreen
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewOutboundService 创建出站邮件服务。
func NewOutboundService(client mailapi.Client, cfg config.OutboundConfig, metrics *monitoring.Metrics, log *zap.Logger) *OutboundService {
	return &OutboundService{
		client:  client,
		cfg:     cfg,
		screen:  security.NewAttachmentScreen(),
		metrics: metrics,
		log:     log,
	}
}

// Send 校验、序列化并发送一封出站邮件。
func (s *OutboundService) Send(ctx context.Context, conn domain.MailboxConnection, spec domain.OutboundMessageSpec) (*domain.SendResult, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	for _, att := range spec.Attachments {
		if err := s.screen.Check(att); err != nil {
			return nil, &domain.ValidationError{Field: "attachments", Reason: err.Error()}
		}
	}

	// 大小上限检查必须先于任何编码工作
	if total := spec.TotalAttachmentSize(); total > s.cfg.MaxAttachmentBytes {
		return nil, &domain.PayloadTooLargeError{Size: total, Limit: s.cfg.MaxAttachmentBytes}
	}

	envelope, err := buildEnvelope(spec)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OutboundEnvelopeBytes.Observe(float64(len(envelope.Raw)))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendDeadline)
	defer cancel()

	result, err := s.client.Send(ctx, conn, envelope)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if s.metrics != nil {
				s.metrics.OutboundSendErrors.Inc()
			}
			return nil, &domain.TimeoutError{Op: "send", Deadline: s.cfg.SendDeadline}
		}
		if s.metrics != nil {
			s.metrics.OutboundSendErrors.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OutboundSendTotal.Inc()
	}
	s.log.Info("outbound message sent",
		zap.String("owner_id", conn.OwnerID),
		zap.String("provider_message_id", result.ProviderMessageID),
	)
	return result, nil
}

// validateSpec 在任何网络调用之前校验出站邮件参数。
//
// To 和 Subject 会被原样写入信封报头，必须拒绝 CR/LF 等
// 控制字符，防止报头注入。
func validateSpec(spec domain.OutboundMessageSpec) error {
	if strings.TrimSpace(spec.To) == "" {
		return &domain.ValidationError{Field: "to", Reason: "must not be empty"}
	}
	if !headerValueSafe(spec.To) {
		return &domain.ValidationError{Field: "to", Reason: "must not contain control characters"}
	}
	if _, err := mail.ParseAddress(spec.To); err != nil {
		return &domain.ValidationError{Field: "to", Reason: "is not a valid address"}
	}
	if strings.TrimSpace(spec.Subject) == "" {
		return &domain.ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	if !headerValueSafe(spec.Subject) {
		return &domain.ValidationError{Field: "subject", Reason: "must not contain control characters"}
	}
	return nil
}

// headerValueSafe 报头值不得包含控制字符（CR/LF 会截断报头行）。
func headerValueSafe(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// buildEnvelope 将出站邮件序列化为传输编码后的信封。
//
// 无附件时生成单部分正文；有附件时生成 multipart/mixed 报文，
// 正文为第一部分，每个附件 base64 编码并按 76 列换行。整个报文
// 最终做 URL-safe 无填充 base64 编码，符合远程 API send 操作的要求。
func buildEnvelope(spec domain.OutboundMessageSpec) (domain.Envelope, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("To: %s\r\n", spec.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", spec.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(spec.Attachments) == 0 {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("\r\n")
		b.WriteString(spec.Body)
		return transportEncode(b.String()), nil
	}

	// 先编码附件，再据此选择不会碰撞的边界令牌
	encoded := make([]string, len(spec.Attachments))
	for i, att := range spec.Attachments {
		encoded[i] = wrapBase64(base64.StdEncoding.EncodeToString(att.Content))
	}

	boundary, err := generateBoundary(spec.Body, encoded)
	if err != nil {
		return domain.Envelope{}, err
	}

	b.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n", boundary))
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(spec.Body)
	b.WriteString("\r\n")

	for i, att := range spec.Attachments {
		b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		b.WriteString(fmt.Sprintf("Content-Type: %s; name=%q\r\n", att.ContentType, att.Filename))
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		b.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n", att.Filename))
		b.WriteString("\r\n")
		b.WriteString(encoded[i])
		b.WriteString("\r\n")
	}

	b.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return transportEncode(b.String()), nil
}

// generateBoundary 生成不与任何部分内容碰撞的边界令牌。
func generateBoundary(body string, encodedParts []string) (string, error) {
	for attempt := 0; attempt < maxBoundaryAttempts; attempt++ {
		candidate := "=_part_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		if boundaryCollides(candidate, body, encodedParts) {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("failed to generate a collision-free boundary after %d attempts", maxBoundaryAttempts)
}

// boundaryCollides 检查候选边界是否以字面形式出现在任何部分中。
func boundaryCollides(candidate, body string, encodedParts []string) bool {
	if strings.Contains(body, candidate) {
		return true
	}
	for _, part := range encodedParts {
		if strings.Contains(part, candidate) {
			return true
		}
	}
	return false
}

// wrapBase64 将 base64 字符串按固定列宽插入 CRLF。
func wrapBase64(s string) string {
	if len(s) <= base64LineWidth {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*(len(s)/base64LineWidth))
	for len(s) > base64LineWidth {
		b.WriteString(s[:base64LineWidth])
		b.WriteString("\r\n")
		s = s[base64LineWidth:]
	}
	b.WriteString(s)
	return b.String()
}

// transportEncode 对完整报文做 URL-safe 无填充 base64 编码。
func transportEncode(message string) domain.Envelope {
	return domain.Envelope{Raw: base64.RawURLEncoding.EncodeToString([]byte(message))}
}
