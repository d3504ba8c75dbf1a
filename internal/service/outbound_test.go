package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailsync/backend/internal/config"
	"mailsync/backend/internal/domain"
)

func outboundTestConfig() config.OutboundConfig {
	return config.OutboundConfig{
		MaxAttachmentBytes: 1024,
		SendDeadline:       2 * time.Second,
	}
}

func TestOutboundService_Send(t *testing.T) {
	conn := domain.MailboxConnection{ID: "conn-1", OwnerID: "owner-1", Address: "me@example.com"}

	t.Run("发送单部分纯文本邮件", func(t *testing.T) {
		var captured domain.Envelope
		client := &fakeMailClient{sendFunc: func(_ context.Context, _ domain.MailboxConnection, envelope domain.Envelope) (*domain.SendResult, error) {
			captured = envelope
			return &domain.SendResult{ProviderMessageID: "p-1"}, nil
		}}
		svc := NewOutboundService(client, outboundTestConfig(), nil, zap.NewNop())

		result, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To:      "alice@example.com",
			Subject: "hello",
			Body:    "plain body",
		})
		assert.NoError(t, err)
		assert.Equal(t, "p-1", result.ProviderMessageID)

		decoded, err := base64.RawURLEncoding.DecodeString(captured.Raw)
		assert.NoError(t, err)
		message := string(decoded)
		assert.Contains(t, message, "To: alice@example.com\r\n")
		assert.Contains(t, message, "Subject: hello\r\n")
		assert.Contains(t, message, "Content-Type: text/plain; charset=UTF-8\r\n")
		assert.Contains(t, message, "plain body")
		assert.NotContains(t, message, "multipart/mixed")
	})

	t.Run("带附件的邮件生成multipart报文", func(t *testing.T) {
		var captured domain.Envelope
		client := &fakeMailClient{sendFunc: func(_ context.Context, _ domain.MailboxConnection, envelope domain.Envelope) (*domain.SendResult, error) {
			captured = envelope
			return &domain.SendResult{ProviderMessageID: "p-2"}, nil
		}}
		svc := NewOutboundService(client, outboundTestConfig(), nil, zap.NewNop())

		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To:      "alice@example.com",
			Subject: "report",
			Body:    "see attachment",
			Attachments: []domain.AttachmentBlob{
				{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("%PDF-fake-content")},
			},
		})
		assert.NoError(t, err)

		decoded, err := base64.RawURLEncoding.DecodeString(captured.Raw)
		assert.NoError(t, err)
		message := string(decoded)

		assert.Contains(t, message, "multipart/mixed")
		assert.Contains(t, message, `Content-Disposition: attachment; filename="report.pdf"`)
		assert.Contains(t, message, "Content-Transfer-Encoding: base64")
		// 附件内容按标准 base64 编码后出现在报文中
		assert.Contains(t, message, base64.StdEncoding.EncodeToString([]byte("%PDF-fake-content")))
		// 边界令牌收尾
		assert.Regexp(t, `--=_part_[0-9a-f]{32}--\r\n$`, message)
	})

	t.Run("缺少收件人校验失败", func(t *testing.T) {
		svc := NewOutboundService(&fakeMailClient{}, outboundTestConfig(), nil, zap.NewNop())
		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{Subject: "s"})

		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, "to", verr.Field)
	})

	t.Run("非法收件人地址校验失败", func(t *testing.T) {
		svc := NewOutboundService(&fakeMailClient{}, outboundTestConfig(), nil, zap.NewNop())
		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To: "not-an-address", Subject: "s",
		})

		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("主题携带CRLF被拒绝", func(t *testing.T) {
		called := false
		client := &fakeMailClient{sendFunc: func(_ context.Context, _ domain.MailboxConnection, _ domain.Envelope) (*domain.SendResult, error) {
			called = true
			return nil, nil
		}}
		svc := NewOutboundService(client, outboundTestConfig(), nil, zap.NewNop())

		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To:      "alice@example.com",
			Subject: "hi\r\nBcc: attacker@evil.com",
			Body:    "b",
		})

		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, "subject", verr.Field)
		assert.False(t, called, "注入报头时不应触达远程 API")
	})

	t.Run("收件人携带CRLF被拒绝", func(t *testing.T) {
		svc := NewOutboundService(&fakeMailClient{}, outboundTestConfig(), nil, zap.NewNop())
		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To:      "alice@example.com\r\nCc: attacker@evil.com",
			Subject: "s",
		})

		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, "to", verr.Field)
	})

	t.Run("附件超限在编码前被拒绝", func(t *testing.T) {
		called := false
		client := &fakeMailClient{sendFunc: func(_ context.Context, _ domain.MailboxConnection, _ domain.Envelope) (*domain.SendResult, error) {
			called = true
			return nil, nil
		}}
		svc := NewOutboundService(client, outboundTestConfig(), nil, zap.NewNop())

		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To: "alice@example.com", Subject: "big",
			Attachments: []domain.AttachmentBlob{
				{Filename: "a.bin", ContentType: "application/octet-stream", Content: make([]byte, 600)},
				{Filename: "b.bin", ContentType: "application/octet-stream", Content: make([]byte, 600)},
			},
		})

		var tooLarge *domain.PayloadTooLargeError
		assert.ErrorAs(t, err, &tooLarge)
		assert.Equal(t, int64(1200), tooLarge.Size)
		assert.False(t, called, "超限时不应触达远程 API")
	})

	t.Run("危险附件扩展名被拒绝", func(t *testing.T) {
		svc := NewOutboundService(&fakeMailClient{}, outboundTestConfig(), nil, zap.NewNop())
		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To: "alice@example.com", Subject: "s",
			Attachments: []domain.AttachmentBlob{
				{Filename: "payload.exe", ContentType: "application/octet-stream", Content: []byte("data")},
			},
		})

		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		assert.Equal(t, "attachments", verr.Field)
	})

	t.Run("发送超出截止时间返回TimeoutError", func(t *testing.T) {
		cfg := outboundTestConfig()
		cfg.SendDeadline = 20 * time.Millisecond

		client := &fakeMailClient{sendFunc: func(ctx context.Context, _ domain.MailboxConnection, _ domain.Envelope) (*domain.SendResult, error) {
			<-ctx.Done()
			return nil, &domain.TransportError{Op: "send", Err: ctx.Err()}
		}}
		svc := NewOutboundService(client, cfg, nil, zap.NewNop())

		_, err := svc.Send(context.Background(), conn, domain.OutboundMessageSpec{
			To: "alice@example.com", Subject: "slow", Body: "b",
		})

		var timeout *domain.TimeoutError
		assert.ErrorAs(t, err, &timeout)
		assert.Equal(t, "send", timeout.Op)
	})
}

func TestWrapBase64(t *testing.T) {
	t.Run("短内容不换行", func(t *testing.T) {
		assert.Equal(t, "abcd", wrapBase64("abcd"))
	})

	t.Run("长内容按76列换行", func(t *testing.T) {
		input := strings.Repeat("A", 200)
		wrapped := wrapBase64(input)

		lines := strings.Split(wrapped, "\r\n")
		assert.Len(t, lines, 3)
		assert.Len(t, lines[0], 76)
		assert.Len(t, lines[1], 76)
		assert.Len(t, lines[2], 48)
		assert.Equal(t, input, strings.ReplaceAll(wrapped, "\r\n", ""))
	})
}

func TestBoundaryCollision(t *testing.T) {
	t.Run("候选边界出现在正文中视为碰撞", func(t *testing.T) {
		assert.True(t, boundaryCollides("=_part_abc", "text =_part_abc text", nil))
	})

	t.Run("候选边界出现在附件编码中视为碰撞", func(t *testing.T) {
		assert.True(t, boundaryCollides("=_part_abc", "body", []string{"xx=_part_abcyy"}))
	})

	t.Run("无碰撞", func(t *testing.T) {
		assert.False(t, boundaryCollides("=_part_abc", "body", []string{"clean"}))
	})

	t.Run("生成的边界不与内容碰撞", func(t *testing.T) {
		boundary, err := generateBoundary("body", []string{"part"})
		assert.NoError(t, err)
		assert.True(t, strings.HasPrefix(boundary, "=_part_"))
		assert.NotContains(t, "body", boundary)
	})
}
